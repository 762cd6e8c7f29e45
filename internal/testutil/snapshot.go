package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleSnapshot is a small platform export using the loose key spellings
// seen in real SOAP and REST payloads.
//
// Assembled, it yields 12 nodes and 12 edges with two unresolved references
// (Unknown_Table, Preferences_Log) and one skipped storage record.
const SampleSnapshot = `data_extensions:
  - CustomerKey: DE_Subscribers
    Name: MasterSubscribers
    CategoryID: 1201
    RowCount: "15000"
    ModifiedDate: "2023-01-10T08:00:00"
    Fields:
      - Name: SubscriberKey
        FieldType: Text
        IsPrimaryKey: true
      - Name: EmailAddress
        FieldType: EmailAddress
      - Name: MobileNumber
        FieldType: Phone
  - customerKey: DE_Orders
    name: Orders_Daily
    modifiedAt: "2024-11-01"
    fields:
      - {name: OrderID, type: Number, isPrimaryKey: true}
      - {name: SubscriberKey, type: Text}
      - {name: Total, type: Decimal}
  - key: DE_Staging
    name: Staging_Import
    fields:
      - {name: ssn_number, type: Text}
      - {name: Email, type: Text}
  - key: DE_Archive
    fields: []
  - name: No Key Here
queries:
  - key: Q_JoinOrders
    name: Join Orders to Subscribers
    queryText: |
      SELECT s.SubscriberKey, o.OrderID
      FROM MasterSubscribers s
      JOIN Orders_Daily o ON s.SubscriberKey = o.SubscriberKey
    DataExtensionTarget:
      CustomerKey: DE_Subscribers
      Name: MasterSubscribers
    targetUpdateTypeName: Overwrite
  - key: Q_Staging
    name: Process Staging
    sql: |
      -- FROM Ghost_Comment
      SELECT * FROM [Staging_Import] WHERE Source = 'FROM Nowhere'
      UNION SELECT * FROM Unknown_Table
    targetKey: DE_Orders
automations:
  - id: Auto_Daily_Etl
    name: Daily ETL
    statusName: Running
    steps:
      - name: Step 1
        activities:
          - name: Run Join
            objectTypeId: 300
            activityObjectId: Q_JoinOrders
      - name: Step 2
        activities:
          - name: Load Staging
            type: query
            queryKey: Q_Staging
            targetKey: DE_Orders
journeys:
  - id: J_Welcome
    name: Welcome Journey
    entryEvent:
      dataExtensionKey: DE_Subscribers
  - key: J_Orphan
    name: No Entry
cloudpages:
  - id: CP_Preferences
    name: Preference Center
    assetType:
      name: webpage
    views:
      html:
        content: |
          %%[ SET @email = Lookup("MasterSubscribers", "EmailAddress", "SubscriberKey", _subscriberkey) ]%%
          <script runat="server">
            Platform.Load("core", "1");
            var de = DataExtension.Init("DE_Subscribers");
          </script>
          %%[ UpsertData("Preferences_Log", 1, "SubscriberKey", _subscriberkey) ]%%
`

// WriteSnapshot writes SampleSnapshot into a temporary directory and returns its path.
func WriteSnapshot(t testing.TB) string {
	t.Helper()
	return WriteFile(t, "snapshot.yaml", SampleSnapshot)
}

// WriteFile writes content to name inside a temporary directory and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
