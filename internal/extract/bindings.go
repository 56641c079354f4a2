package extract

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// PageBinding ties a 1-indexed page number to the field group printed on it.
type PageBinding struct {
	Page  int    `yaml:"page"`
	Group string `yaml:"group"`
}

// BindingSet holds the page bindings for the full and minimal strategies.
type BindingSet struct {
	Standard []PageBinding `yaml:"standard"`
	Minimal  []PageBinding `yaml:"minimal"`
}

// DefaultBindings maps the 16-page residential contract.
func DefaultBindings() []PageBinding {
	return []PageBinding{
		{Page: 1, Group: GroupPartiesPrice},
		{Page: 2, Group: GroupFinancing},
		{Page: 4, Group: GroupTitleSurvey},
		{Page: 6, Group: GroupInspections},
		{Page: 8, Group: GroupWarrantyClosing},
		{Page: 14, Group: GroupAdditionalTerms},
		{Page: 15, Group: GroupAgents},
		{Page: 16, Group: GroupSignatures},
	}
}

// MinimalBindings covers only the fields a net sheet cannot do without.
func MinimalBindings() []PageBinding {
	return []PageBinding{
		{Page: 1, Group: GroupCriticalParties},
		{Page: 8, Group: GroupCriticalClosing},
	}
}

// DefaultBindingSet returns both default binding lists.
func DefaultBindingSet() BindingSet {
	return BindingSet{Standard: DefaultBindings(), Minimal: MinimalBindings()}
}

// LoadBindings reads a YAML binding file. An empty path returns the
// defaults; a list omitted from the file keeps its default.
func LoadBindings(path string, schema *Schema) (BindingSet, error) {
	set := DefaultBindingSet()
	if path == "" {
		return set, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return BindingSet{}, eris.Wrapf(err, "extract: read bindings %s", path)
	}
	var file BindingSet
	if err := yaml.Unmarshal(b, &file); err != nil {
		return BindingSet{}, eris.Wrapf(err, "extract: parse bindings %s", path)
	}
	if len(file.Standard) > 0 {
		set.Standard = file.Standard
	}
	if len(file.Minimal) > 0 {
		set.Minimal = file.Minimal
	}
	if err := set.Validate(schema); err != nil {
		return BindingSet{}, err
	}
	return set, nil
}

// Validate checks page numbers and group names.
func (s BindingSet) Validate(schema *Schema) error {
	for _, list := range [][]PageBinding{s.Standard, s.Minimal} {
		for _, b := range list {
			if b.Page < 1 {
				return eris.Errorf("extract: binding page %d must be >= 1", b.Page)
			}
			if !schema.HasGroup(b.Group) {
				return eris.Errorf("extract: binding page %d uses unknown group %q", b.Page, b.Group)
			}
		}
	}
	return nil
}

// Pages returns the distinct pages referenced by bindings, ascending.
func Pages(bindings []PageBinding) []int {
	pages := make([]int, 0, len(bindings))
	for _, b := range bindings {
		pages = append(pages, b.Page)
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}
