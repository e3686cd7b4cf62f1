package searchcore

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kailas-cloud/searchcore/internal/config"
)

type article struct {
	ID        string    `json:"id" search:"pk"`
	Title     string    `json:"title" search:"text,boost=2"`
	Body      string    `json:"body" search:"text"`
	Author    string    `json:"author" search:"autocomplete"`
	Tags      []string  `json:"tags" search:"related_id"`
	Published bool      `json:"published" search:"filterable"`
	Rating    *float64  `json:"rating,omitempty" search:"filterable"`
	Created   time.Time `json:"created" search:"filterable"`
	Internal  string    `json:"internal"`
}

type product struct {
	SKU   int     `json:"sku" search:"pk"`
	Name  string  `json:"name" search:"text"`
	Price float64 `json:"price" search:"filterable,type=number"`
}

type noPK struct {
	Title string `search:"text"`
}

type badKind struct {
	ID    string `json:"id" search:"pk"`
	Title string `json:"title" search:"vector"`
}

func TestParseSchema(t *testing.T) {
	meta, err := parseSchema[article]()
	if err != nil {
		t.Fatal(err)
	}
	if meta.pkIdx != 0 || meta.pkName != "id" {
		t.Errorf("pk = %d %q", meta.pkIdx, meta.pkName)
	}
	want := []config.FieldConfig{
		{Name: "title", Kind: "text", Boost: 2},
		{Name: "body", Kind: "text"},
		{Name: "author", Kind: "autocomplete"},
		{Name: "tags", Kind: "related_id"},
		{Name: "published", Kind: "filterable", Type: "bool"},
		{Name: "rating", Kind: "filterable", Type: "number", Nullable: true},
		{Name: "created", Kind: "filterable", Type: "time"},
	}
	if !reflect.DeepEqual(meta.fields, want) {
		t.Errorf("fields = %+v", meta.fields)
	}
}

func TestParseSchema_PointerType(t *testing.T) {
	meta, err := parseSchema[*product]()
	if err != nil {
		t.Fatal(err)
	}
	if meta.pkName != "sku" {
		t.Errorf("pk name = %q", meta.pkName)
	}
}

func TestParseSchema_Errors(t *testing.T) {
	type dupPK struct {
		A string `search:"pk"`
		B string `search:"pk"`
	}
	type badBoost struct {
		ID string `json:"id" search:"pk"`
		T  string `json:"t" search:"text,boost=high"`
	}
	type unknownOpt struct {
		ID string `json:"id" search:"pk"`
		T  string `json:"t" search:"text,stored"`
	}
	type noInfer struct {
		ID string         `json:"id" search:"pk"`
		M  map[string]int `json:"m" search:"filterable"`
	}
	type reservedID struct {
		Key string `json:"key" search:"pk"`
		ID  string `json:"id" search:"text"`
	}
	// both names lowercase to "title"
	type sameName struct {
		ID    string `json:"id" search:"pk"`
		Title string `search:"text"`
		TITLE string `search:"text"`
	}

	for name, fn := range map[string]func() (*schemaMeta, error){
		"no pk":       parseSchema[noPK],
		"not struct":  parseSchema[int],
		"dup pk":      parseSchema[dupPK],
		"bad boost":   parseSchema[badBoost],
		"unknown opt": parseSchema[unknownOpt],
		"no infer":    parseSchema[noInfer],
		"reserved id": parseSchema[reservedID],
		"same name":   parseSchema[sameName],
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := fn(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestObjectRoundTrip(t *testing.T) {
	meta, err := parseSchema[article]()
	if err != nil {
		t.Fatal(err)
	}
	rating := 4.5
	in := article{
		ID: "a1", Title: "Go", Tags: []string{"lang"}, Published: true,
		Rating: &rating, Created: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Internal: "x",
	}
	obj, err := meta.toObject(in)
	if err != nil {
		t.Fatal(err)
	}
	if obj["id"] != "a1" || obj["rating"] != json.Number("4.5") || obj["created"] != "2024-05-01T00:00:00Z" {
		t.Errorf("object = %v", obj)
	}

	out, err := fromObject[article](meta, obj)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestObjectRoundTrip_NonIDPrimaryKey(t *testing.T) {
	meta, err := parseSchema[product]()
	if err != nil {
		t.Fatal(err)
	}
	obj, err := meta.toObject(&product{SKU: 42, Name: "lamp", Price: 9.5})
	if err != nil {
		t.Fatal(err)
	}
	if obj["id"] != "42" || obj["sku"] != json.Number("42") {
		t.Errorf("object = %v", obj)
	}
	out, err := fromObject[product](meta, obj)
	if err != nil {
		t.Fatal(err)
	}
	if out.SKU != 42 || out.Name != "lamp" {
		t.Errorf("out = %+v", out)
	}
	if _, ok := obj["id"]; !ok {
		t.Error("fromObject mutated the stored object")
	}
}

func TestToObject_EmptyPrimaryKey(t *testing.T) {
	meta, err := parseSchema[article]()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := meta.toObject(article{Title: "x"}); !errors.Is(err, ErrMapping) {
		t.Errorf("err = %v, want ErrMapping", err)
	}
	var nilItem *article
	if _, err := meta.toObject(nilItem); !errors.Is(err, ErrMapping) {
		t.Errorf("nil item err = %v, want ErrMapping", err)
	}
}

func TestObjectRoundTrip_UntaggedFields(t *testing.T) {
	type note struct {
		ID   string `json:"id" search:"pk"`
		Body string `search:"text"`
	}
	meta, err := parseSchema[note]()
	if err != nil {
		t.Fatal(err)
	}
	if meta.fields[0].Name != "body" {
		t.Fatalf("fields = %+v", meta.fields)
	}
	obj, err := meta.toObject(note{ID: "n1", Body: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if obj["body"] != "hello" {
		t.Errorf("object = %v", obj)
	}
	if _, ok := obj["Body"]; ok {
		t.Errorf("Go name leaked into object: %v", obj)
	}
	out, err := fromObject[note](meta, obj)
	if err != nil {
		t.Fatal(err)
	}
	if out.Body != "hello" {
		t.Errorf("out = %+v", out)
	}
}

func TestSchemaFor_ParsesOnce(t *testing.T) {
	first, err := schemaFor[article]()
	if err != nil {
		t.Fatal(err)
	}
	second, err := schemaFor[article]()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("schema parsed twice for the same type")
	}
	if _, err := schemaFor[noPK](); err == nil {
		t.Error("invalid schema cached as valid")
	}
}
