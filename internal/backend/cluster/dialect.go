package cluster

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the differences between supported cluster products.
type Dialect struct {
	Name         string
	Distribution string
	Major        int
	// CommonTerms reports support for the "common" query (removed in Elasticsearch 8).
	CommonTerms bool
}

// Supported dialects.
var (
	Elasticsearch7 = Dialect{Name: "elasticsearch7", Distribution: "elasticsearch", Major: 7, CommonTerms: true}
	Elasticsearch8 = Dialect{Name: "elasticsearch8", Distribution: "elasticsearch", Major: 8, CommonTerms: false}
	OpenSearch2    = Dialect{Name: "opensearch2", Distribution: "opensearch", Major: 2, CommonTerms: true}
)

var dialects = map[string]Dialect{
	Elasticsearch7.Name: Elasticsearch7,
	Elasticsearch8.Name: Elasticsearch8,
	OpenSearch2.Name:    OpenSearch2,
}

// DialectNames lists the accepted dialect names.
func DialectNames() []string {
	return []string{Elasticsearch7.Name, Elasticsearch8.Name, OpenSearch2.Name}
}

// LookupDialect resolves a dialect by name.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown dialect %q (want one of %s)", name, strings.Join(DialectNames(), ", "))
	}
	return d, nil
}

// rootInfo is the GET / reply.
type rootInfo struct {
	Version struct {
		Number       string `json:"number"`
		Distribution string `json:"distribution"`
	} `json:"version"`
}

// detect derives the dialect a root reply describes.
func detect(info rootInfo) (Dialect, error) {
	dist := info.Version.Distribution
	if dist == "" {
		dist = "elasticsearch"
	}
	majorStr, _, _ := strings.Cut(info.Version.Number, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return Dialect{}, fmt.Errorf("unparsable version %q", info.Version.Number)
	}
	for _, d := range dialects {
		if d.Distribution == dist && d.Major == major {
			return d, nil
		}
	}
	return Dialect{}, fmt.Errorf("unsupported cluster %s %s", dist, info.Version.Number)
}
