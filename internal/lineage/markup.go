package lineage

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Mechanism identifies how an asset reference was written.
type Mechanism string

// Asset reference mechanisms.
const (
	MechanismAMPscript Mechanism = "ampscript"
	MechanismSSJS      Mechanism = "ssjs"
	MechanismREST      Mechanism = "rest"
)

// AssetReference is a storage-object reference found in markup or script content.
type AssetReference struct {
	// Token is the referenced object name or key, verbatim
	Token string
	// Function is the canonical call or endpoint that carried the token
	Function string
	// Mechanism is the scripting surface the call belongs to
	Mechanism Mechanism
}

// Evidence renders the reference as a provenance string.
func (r AssetReference) Evidence() string {
	return fmt.Sprintf("cloudpage %s %s:%s", r.Mechanism, r.Function, r.Token)
}

// assetFunctions maps lower-cased call names to their canonical spelling.
var assetFunctions = map[string]string{
	"lookup":                "Lookup",
	"lookuprows":            "LookupRows",
	"lookuprowscs":          "LookupRowsCS",
	"lookuporderedrows":     "LookupOrderedRows",
	"lookuporderedrowscs":   "LookupOrderedRowsCS",
	"upsertdata":            "UpsertData",
	"upsertde":              "UpsertDE",
	"insertdata":            "InsertData",
	"insertde":              "InsertDE",
	"updatedata":            "UpdateData",
	"updatede":              "UpdateDE",
	"deletedata":            "DeleteData",
	"deletede":              "DeleteDE",
	"claimrow":              "ClaimRow",
	"dataextensionrowcount": "DataExtensionRowCount",
	"dataextension.init":    "DataExtension.Init",
	"dataextensionobject":   "DataExtensionObject",
}

// assetCallPattern matches a known call with a quoted first argument.
// The argument is captured by the double- or single-quote alternative.
// Longer names come first because RE2 alternation is leftmost-first.
var assetCallPattern = regexp.MustCompile(
	`(?i)\b(LookupOrderedRowsCS|LookupOrderedRows|LookupRowsCS|LookupRows|Lookup|UpsertData|UpsertDE|InsertData|InsertDE|UpdateData|UpdateDE|DeleteData|DeleteDE|ClaimRow|DataExtensionRowCount|DataExtension\.Init|DataExtensionObject)\s*\(\s*(?:"([^"]+)"|'([^']+)')`,
)

// assetRESTPattern matches REST paths that name an object by key.
var assetRESTPattern = regexp.MustCompile(
	`(?i)/(?:hub/v1/(dataevents)/key:|data/v1/async/(dataextensions)/key:|data/v1/(customobjectdata)/key/)([\w\-.]+)`,
)

type positionedRef struct {
	pos int
	ref AssetReference
}

// ExtractAssetReferences returns the object references embedded in markup/script content,
// in order of appearance. A reference is deduplicated per (token, function), so the same
// object named through two different calls yields two references.
func ExtractAssetReferences(content string) []AssetReference {
	refs := []AssetReference{}
	if strings.TrimSpace(content) == "" {
		return refs
	}

	var found []positionedRef

	for _, idx := range assetCallPattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[idx[2]:idx[3]]
		arg := idx[4:6]
		if arg[0] < 0 {
			arg = idx[6:8]
		}
		token := strings.TrimSpace(content[arg[0]:arg[1]])
		if token == "" {
			continue
		}
		function := assetFunctions[strings.ToLower(name)]
		found = append(found, positionedRef{
			pos: idx[0],
			ref: AssetReference{
				Token:     token,
				Function:  function,
				Mechanism: callMechanism(content[:idx[0]], function),
			},
		})
	}

	for _, idx := range assetRESTPattern.FindAllStringSubmatchIndex(content, -1) {
		function := ""
		for g := 1; g <= 3; g++ {
			if idx[2*g] >= 0 {
				function = strings.ToLower(content[idx[2*g]:idx[2*g+1]])
				break
			}
		}
		token := strings.TrimRight(content[idx[8]:idx[9]], ".")
		if token == "" {
			continue
		}
		found = append(found, positionedRef{
			pos: idx[0],
			ref: AssetReference{Token: token, Function: function, Mechanism: MechanismREST},
		})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	seen := make(map[string]struct{}, len(found))
	for _, f := range found {
		key := strings.ToLower(f.ref.Token) + "|" + f.ref.Function
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, f.ref)
	}

	return refs
}

const ssjsCallPrefix = "platform.function."

// callMechanism decides whether a call is server-side JavaScript or AMPscript
// by looking at the text immediately before it. Only the tail of before is
// inspected.
func callMechanism(before, function string) Mechanism {
	if function == "DataExtension.Init" {
		return MechanismSSJS
	}
	if n := len(ssjsCallPrefix); len(before) >= n && strings.EqualFold(before[len(before)-n:], ssjsCallPrefix) {
		return MechanismSSJS
	}
	return MechanismAMPscript
}
