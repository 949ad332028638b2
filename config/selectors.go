package config

import (
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Selectors is the table of structural selectors the pipeline uses to find
// controls on the registry pages. Keeping them here lets markup drift be
// handled without touching control flow.
type Selectors struct {
	ConsentCheckbox    string `yaml:"consent_checkbox"`
	ConsentLabel       string `yaml:"consent_label"`
	SearchInput        string `yaml:"search_input"`
	SearchButton       string `yaml:"search_button"`
	ResultRows         string `yaml:"result_rows"`
	FirstResultLink    string `yaml:"first_result_link"`
	RegistrationsLabel string `yaml:"registrations_label"`
	DossierRole        string `yaml:"dossier_role"`
	DossierRow         string `yaml:"dossier_row"`
	DossierLink        string `yaml:"dossier_link"`
	DossierHost        string `yaml:"dossier_host"`
	DossierIframe      string `yaml:"dossier_iframe"`
	ToxicologyToggle   string `yaml:"toxicology_toggle"`
	RepeatedDoseToggle string `yaml:"repeated_dose_toggle"`
	SummaryLink        string `yaml:"summary_link"`
	DocumentIframe     string `yaml:"document_iframe"`
	KeyInfoSection     string `yaml:"key_info_section"`
	BlockSection       string `yaml:"block_section"`
	BlockLabel         string `yaml:"block_label"`
	FieldValue         string `yaml:"field_value"`

	// KeyInfoHeading is the block heading text that marks the key information
	// section when it lacks its dedicated class.
	KeyInfoHeading string `yaml:"key_info_heading"`

	// LeadRole is matched case-insensitively against the dossier role cells.
	LeadRole string `yaml:"lead_role"`
}

// DefaultSelectors returns the selectors for the ECHA CHEM registry.
func DefaultSelectors() Selectors {
	return Selectors{
		ConsentCheckbox:    "input#legal-notice",
		ConsentLabel:       "label[for='legal-notice']",
		SearchInput:        "form input[name='searchText']",
		SearchButton:       "form button[type='submit']",
		ResultRows:         "tr.das-lib-tr_items",
		FirstResultLink:    "tr.das-lib-tr_items a.das-strong.das-internal",
		RegistrationsLabel: "a.das-widget label[data-cy='dossierRegistrationCount-label']",
		DossierRole:        `td[data-cy="dossier-owner-js-role"] span`,
		DossierRow:         "tr",
		DossierLink:        "td[data-cy='dossier-icon'] a",
		DossierHost:        "iucdas-mod-dossier-view-app",
		DossierIframe:      `iframe[title="Dossier view"]`,
		ToxicologyToggle:   "button[data-toc-target='#id_7_Toxicologicalinformation']",
		RepeatedDoseToggle: "button[data-toc-target='#id_75_Repeateddosetoxicity']",
		SummaryLink:        "a.das-leaf.das-docid-IUC5-c5c5dd9c-045f-4d20-a1d4-cd2301d3569a_5f2f0062-0783-425a-a1cb-18b6b744ba6a",
		DocumentIframe:     `iframe[title="Document view"][data-cy="das-document-iframe"]`,
		KeyInfoSection:     "section.das-block.KeyInformation",
		BlockSection:       "section.das-block",
		BlockLabel:         "h3.das-block_label",
		FieldValue:         ".das-field_value_html",
		KeyInfoHeading:     "Description of key information",
		LeadRole:           "lead",
	}
}

// LoadSelectors reads a YAML file and overrides the matching entries of base.
// Keys absent from the file keep their base value.
func LoadSelectors(path string, base Selectors) (Selectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read selectors file: %w", err)
	}
	sel := base
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return base, fmt.Errorf("parse selectors file %s: %w", path, err)
	}
	return sel, nil
}

// Validate checks every CSS selector parses and the text needles are set.
func (s Selectors) Validate() error {
	for _, f := range s.cssFields() {
		if f.value == "" {
			return fmt.Errorf("selector %s is empty", f.name)
		}
		if _, err := cascadia.Parse(f.value); err != nil {
			return fmt.Errorf("selector %s (%q): %w", f.name, f.value, err)
		}
	}
	if s.KeyInfoHeading == "" {
		return fmt.Errorf("selector key_info_heading is empty")
	}
	if s.LeadRole == "" {
		return fmt.Errorf("selector lead_role is empty")
	}
	return nil
}

type selectorField struct {
	name  string
	value string
}

func (s Selectors) cssFields() []selectorField {
	return []selectorField{
		{"consent_checkbox", s.ConsentCheckbox},
		{"consent_label", s.ConsentLabel},
		{"search_input", s.SearchInput},
		{"search_button", s.SearchButton},
		{"result_rows", s.ResultRows},
		{"first_result_link", s.FirstResultLink},
		{"registrations_label", s.RegistrationsLabel},
		{"dossier_role", s.DossierRole},
		{"dossier_row", s.DossierRow},
		{"dossier_link", s.DossierLink},
		{"dossier_host", s.DossierHost},
		{"dossier_iframe", s.DossierIframe},
		{"toxicology_toggle", s.ToxicologyToggle},
		{"repeated_dose_toggle", s.RepeatedDoseToggle},
		{"summary_link", s.SummaryLink},
		{"document_iframe", s.DocumentIframe},
		{"key_info_section", s.KeyInfoSection},
		{"block_section", s.BlockSection},
		{"block_label", s.BlockLabel},
		{"field_value", s.FieldValue},
	}
}
