package related

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ReturnShape selects what GetRelated returns
type ReturnShape string

const (
	ReturnData         ReturnShape = "data"
	ReturnIDs          ReturnShape = "ids"
	ReturnCount        ReturnShape = "count"
	ReturnSearchResult ReturnShape = "searchResult"
	ReturnEntities     ReturnShape = "modelInstances"
	ReturnFirstID      ReturnShape = "firstId"
	ReturnFirstEntity  ReturnShape = "firstModelInstance"
)

const (
	sortAsc  = "asc"
	sortDesc = "desc"
)

// Options are the recognized GetRelated options. Zero values are the defaults.
type Options struct {
	// RowIDs queries the relationships of these subject rows instead of the subject's own id
	RowIDs []int64 `mapstructure:"row_ids"`

	Start int `mapstructure:"start"`
	// Limit caps the returned items; 0 uses the configured default (1000), negative is unlimited
	Limit int `mapstructure:"limit"`

	// Entity types of the related rows, as ids or idnos
	RestrictToTypes []string `mapstructure:"restrict_to_types"`
	ExcludeTypes    []string `mapstructure:"exclude_types"`

	// Relationship types, as ids or codes
	RestrictToRelationshipTypes []string `mapstructure:"restrict_to_relationship_types"`
	ExcludeRelationshipTypes    []string `mapstructure:"exclude_relationship_types"`

	// IncludeSubtypes expands type lists to their descendants; nil means true
	IncludeSubtypes *bool `mapstructure:"include_subtypes"`

	// CheckAccess keeps related rows whose access field has one of these values
	CheckAccess []int `mapstructure:"check_access"`

	ShowDeleted bool `mapstructure:"show_deleted"`

	// Where holds field equality conditions; keys may be qualified with the related or link table
	Where map[string]interface{} `mapstructure:"where"`

	// Criteria are raw SQL conditions over the aliases t (related table) and l (link table)
	Criteria []string `mapstructure:"criteria"`

	// Sort lists field names, optionally table-qualified, or "label"
	Sort          []string `mapstructure:"sort"`
	SortDirection string   `mapstructure:"sort_direction"`

	// ShowCurrentOnly keeps, per subject, the relationship with the latest non-future effective date
	ShowCurrentOnly bool `mapstructure:"show_current_only"`

	ReturnAs ReturnShape `mapstructure:"return_as"`

	// PrimaryIDs excludes related rows by table
	PrimaryIDs map[string][]int64 `mapstructure:"primary_ids"`

	// RestrictToValues keeps related rows whose field value is one of the listed values
	RestrictToValues map[string][]string `mapstructure:"restrict_to_values"`

	ReturnLabelsAsArray      bool `mapstructure:"return_labels_as_array"`
	ReturnNonPreferredLabels bool `mapstructure:"return_non_preferred_labels"`
	DontReturnLabels         bool `mapstructure:"dont_return_labels"`
	UseLocaleCodes           bool `mapstructure:"use_locale_codes"`

	// Fields limits the fields returned per related row; empty returns every field
	Fields []string `mapstructure:"fields"`

	// UserID overrides the request user for access checks
	UserID int64  `mapstructure:"user_id"`
	Locale string `mapstructure:"locale"`
}

// option aliases, keyed by the lower-case name with separators removed
var aliases = map[string]string{
	"rowids":                       "row_ids",
	"rowid":                        "row_ids",
	"start":                        "start",
	"limit":                        "limit",
	"restricttotypes":              "restrict_to_types",
	"restricttotype":               "restrict_to_types",
	"excludetypes":                 "exclude_types",
	"excludetype":                  "exclude_types",
	"restricttorelationshiptypes":  "restrict_to_relationship_types",
	"restricttorelationshiptype":   "restrict_to_relationship_types",
	"excluderelationshiptypes":     "exclude_relationship_types",
	"excluderelationshiptype":      "exclude_relationship_types",
	"includesubtypes":              "include_subtypes",
	"checkaccess":                  "check_access",
	"showdeleted":                  "show_deleted",
	"where":                        "where",
	"criteria":                     "criteria",
	"sort":                         "sort",
	"sortdirection":                "sort_direction",
	"showcurrentonly":              "show_current_only",
	"currentonly":                  "show_current_only",
	"returnas":                     "return_as",
	"primaryids":                   "primary_ids",
	"restricttovalues":             "restrict_to_values",
	"restricttobundlevalues":       "restrict_to_values",
	"returnlabelsasarray":          "return_labels_as_array",
	"returnnonpreferredlabels":     "return_non_preferred_labels",
	"dontreturnlabels":             "dont_return_labels",
	"uselocalecodes":               "use_locale_codes",
	"fields":                       "fields",
	"userid":                       "user_id",
	"locale":                       "locale",

	// negated
	"dontincludesubtypesintyperestriction": "!include_subtypes",
}

var shapes = map[string]ReturnShape{
	"":                   ReturnData,
	"data":               ReturnData,
	"array":              ReturnData,
	"arrays":             ReturnData,
	"ids":                ReturnIDs,
	"id":                 ReturnIDs,
	"count":              ReturnCount,
	"searchresult":       ReturnSearchResult,
	"modelinstances":     ReturnEntities,
	"entities":           ReturnEntities,
	"firstid":            ReturnFirstID,
	"firstmodelinstance": ReturnFirstEntity,
	"first":              ReturnFirstEntity,
}

func canonical(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", "")
	return strings.ReplaceAll(key, "-", "")
}

// NormalizeOptions turns a loosely keyed option bag into Options. Keys are
// matched case-insensitively and with or without separators, and their
// historical aliases are accepted. Unknown keys are an error.
func NormalizeOptions(raw map[string]interface{}) (*Options, error) {
	normalized := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		name, ok := aliases[canonical(k)]
		if !ok {
			return nil, fmt.Errorf("unknown option %q", k)
		}
		if strings.HasPrefix(name, "!") {
			b, err := asBool(v)
			if err != nil {
				return nil, fmt.Errorf("option %q: %w", k, err)
			}
			name, v = name[1:], !b
		}
		normalized[name] = v
	}

	opts := &Options{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create option decoder: %w", err)
	}
	if err := decoder.Decode(normalized); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	return opts, nil
}

func asBool(v interface{}) (bool, error) {
	var b bool
	if err := mapstructure.WeakDecode(v, &b); err != nil {
		return false, err
	}
	return b, nil
}

// normalize validates enumerated values and applies canonical spellings
func (o *Options) normalize() error {
	shape, ok := shapes[canonical(string(o.ReturnAs))]
	if !ok {
		return fmt.Errorf("invalid return shape %q", o.ReturnAs)
	}
	o.ReturnAs = shape

	switch strings.ToLower(o.SortDirection) {
	case "", sortAsc:
		o.SortDirection = sortAsc
	case sortDesc:
		o.SortDirection = sortDesc
	default:
		return fmt.Errorf("invalid sort direction %q (expected asc or desc)", o.SortDirection)
	}
	if o.Start < 0 {
		o.Start = 0
	}
	return nil
}

func (o *Options) includeSubtypes() bool {
	return o.IncludeSubtypes == nil || *o.IncludeSubtypes
}

func (o *Options) descending() bool {
	return o.SortDirection == sortDesc
}
