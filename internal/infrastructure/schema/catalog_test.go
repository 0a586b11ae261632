package schema

import (
	"testing"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

func TestBuiltinCatalogCoversEverySchemaType(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, st := range domain.SchemaTypes() {
		s, err := catalog.Lookup(st)
		if err != nil {
			t.Fatalf("Lookup(%s) error = %v", st, err)
		}
		if s.Instructions == "" || len(s.Fields) == 0 {
			t.Fatalf("schema %s is incomplete: %+v", st, s)
		}
	}
}

func TestParseRejectsUnknownAndDuplicateTypes(t *testing.T) {
	cases := map[string]string{
		"unknown":   "- type: nope/x\n  fields: {a: b}\n",
		"duplicate": "- type: claims/extract_info\n  fields: {a: b}\n- type: claims/extract_info\n  fields: {a: b}\n",
		"no fields": "- type: claims/extract_info\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLookupUnknownIsNotFound(t *testing.T) {
	catalog, err := Parse([]byte("- type: claims/extract_info\n  fields: {a: b}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := catalog.Lookup(domain.SchemaPolicyholderClaim); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
