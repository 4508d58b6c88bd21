package scraper

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Config defines how to extract articles from a listing page, for sites
// that publish no feed. Each element matched by ItemSelector is one
// article; the other selectors are evaluated inside it.
type Config struct {
	ItemSelector    string `yaml:"item_selector"`
	TitleSelector   string `yaml:"title_selector"`
	LinkSelector    string `yaml:"link_selector,omitempty"`    // Default: first a[href]
	SummarySelector string `yaml:"summary_selector,omitempty"` // Optional
	ImageSelector   string `yaml:"image_selector,omitempty"`   // Default: first img[src]
	DateSelector    string `yaml:"date_selector,omitempty"`    // Optional
	DateFormat      string `yaml:"date_format,omitempty"`      // Go time format string
	MaxItems        int    `yaml:"max_items,omitempty"`        // Default: 50
}

// DefaultMaxItems bounds how many items one listing page may yield.
const DefaultMaxItems = 50

// Validate checks that the required selectors are present and that every
// selector compiles.
func (c *Config) Validate() error {
	var errs []error
	if c.ItemSelector == "" {
		errs = append(errs, errors.New("item_selector is required"))
	}
	if c.TitleSelector == "" {
		errs = append(errs, errors.New("title_selector is required"))
	}
	if c.DateSelector != "" && c.DateFormat == "" {
		errs = append(errs, errors.New("date_format is required with date_selector"))
	}
	if c.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("max_items must not be negative, got %d", c.MaxItems))
	}

	for name, sel := range map[string]string{
		"item_selector":    c.ItemSelector,
		"title_selector":   c.TitleSelector,
		"link_selector":    c.LinkSelector,
		"summary_selector": c.SummarySelector,
		"image_selector":   c.ImageSelector,
		"date_selector":    c.DateSelector,
	} {
		if sel == "" {
			continue
		}
		if err := compiles(sel); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, sel, err))
		}
	}
	return errors.Join(errs...)
}

// compiles reports a selector syntax error. goquery treats a bad selector
// as matching nothing, so it is checked up front with the same compiler.
func compiles(sel string) error {
	_, err := cascadia.Compile(sel)
	return err
}
