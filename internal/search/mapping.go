package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for item documents.
// Text fields get English analysis for free-form queries; brand_slug and
// sku use the keyword analyzer so filters match exactly; the numeric
// fields back range queries and sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// Name - primary search target, highlighted.
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = en.AnalyzerName
	nameField.Store = true
	nameField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("name", nameField)

	// Brand as display text; stemming off, brand names are proper nouns.
	brandField := bleve.NewTextFieldMapping()
	brandField.Analyzer = simple.Name
	brandField.Store = true
	docMapping.AddFieldMappingsAt("brand", brandField)

	modelField := bleve.NewTextFieldMapping()
	modelField.Analyzer = en.AnalyzerName
	modelField.Store = true
	docMapping.AddFieldMappingsAt("model", modelField)

	colorwayField := bleve.NewTextFieldMapping()
	colorwayField.Analyzer = simple.Name
	colorwayField.Store = true
	docMapping.AddFieldMappingsAt("colorway", colorwayField)

	// Description - searchable but not stored, it can be long.
	descField := bleve.NewTextFieldMapping()
	descField.Analyzer = en.AnalyzerName
	descField.Store = false
	docMapping.AddFieldMappingsAt("description", descField)

	// Exact-match fields.
	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idField)

	brandSlugField := bleve.NewTextFieldMapping()
	brandSlugField.Analyzer = keyword.Name
	brandSlugField.Store = true
	docMapping.AddFieldMappingsAt("brand_slug", brandSlugField)

	skuField := bleve.NewTextFieldMapping()
	skuField.Analyzer = keyword.Name
	skuField.Store = true
	docMapping.AddFieldMappingsAt("sku", skuField)

	// Numeric fields for ranges and sorting.
	priceField := bleve.NewNumericFieldMapping()
	priceField.Store = true
	docMapping.AddFieldMappingsAt("retail_price", priceField)

	yearField := bleve.NewNumericFieldMapping()
	yearField.Store = true
	docMapping.AddFieldMappingsAt("release_year", yearField)

	createdField := bleve.NewNumericFieldMapping()
	createdField.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdField)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
