// Package transform turns fetched source records into create payloads.
//
// Each entity type has a static [Policy]. Fields that reference other source-account records
// (brands, suppliers, variant attributes) are lifted out of the payload into
// [models.Dependencies] so nothing account-local is ever posted; [Bind] puts them back once they
// have destination ids.
package transform

import (
	"fmt"
	"maps"
	"strings"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
)

// Transformer holds the destination settings that shape payloads.
type Transformer struct {
	// TaxExclusive selects price_excluding_tax when a record carries both price fields.
	TaxExclusive bool
}

// Transform applies the default (tax-inclusive) transformer.
func Transform(e models.SourceEntity, t models.EntityType) (models.TransformedEntity, error) {
	return Transformer{}.Transform(e, t)
}

// Transform returns a new creation-ready entity for e. e is never modified, and feeding the
// resulting payload back in yields the same payload.
func (tr Transformer) Transform(e models.SourceEntity, t models.EntityType) (models.TransformedEntity, error) {
	policy, ok := policies[t]
	if !ok {
		return models.TransformedEntity{}, fmt.Errorf("%w: no transform for %s", shared.ErrInvalidInput, t)
	}
	if e == nil {
		return models.TransformedEntity{}, fmt.Errorf("%w: nil %s", shared.ErrInvalidInput, t.Singular())
	}

	out := models.TransformedEntity{
		Type:     t,
		SourceID: e.ID(),
		Name:     Identifier(e, t),
	}

	if t == models.Products {
		out.Payload, out.Deps = tr.product(e, policy)
		return out, nil
	}

	out.Payload = filter(e, policy)
	return out, nil
}

func (tr Transformer) product(e models.SourceEntity, policy Policy) (map[string]any, models.Dependencies) {
	var deps models.Dependencies
	payload := make(map[string]any)

	for k, v := range e {
		if v == nil {
			continue
		}
		switch k {
		case "brand_id":
			deps.BrandID, _ = v.(string)
			continue
		case "supplier_id":
			deps.SupplierID, _ = v.(string)
			continue
		case "product_suppliers":
			deps.ProductSuppliers = productSuppliers(v)
			continue
		case "variant_definitions":
			deps.VariantDefinitions = definitions(v)
			continue
		case "variants":
			deps.Variants = tr.variants(v)
			continue
		case "product_codes":
			if codes := productCodes(v); len(codes) > 0 {
				payload[k] = codes
			}
			continue
		}
		if policy.Permits(k) {
			payload[k] = deepCopy(v)
		}
	}

	activeFlag(payload, e)
	tr.singlePrice(payload)
	return payload, deps
}

func (tr Transformer) variants(v any) []models.Variant {
	list, _ := v.([]any)
	var out []models.Variant
	for _, item := range list {
		m := asMap(item)
		if m == nil {
			continue
		}
		fields := filter(m, variantPolicy)
		activeFlag(fields, m)
		tr.singlePrice(fields)
		out = append(out, models.Variant{Fields: fields, Definitions: definitions(m["variant_definitions"])})
	}
	return out
}

// singlePrice keeps one price field; the API rejects payloads carrying both.
func (tr Transformer) singlePrice(payload map[string]any) {
	_, incl := payload["price_including_tax"]
	_, excl := payload["price_excluding_tax"]
	if !incl || !excl {
		return
	}
	if tr.TaxExclusive {
		delete(payload, "price_including_tax")
	} else {
		delete(payload, "price_excluding_tax")
	}
}

// activeFlag maps the read-side "active" onto the write-side "is_active".
func activeFlag(payload map[string]any, src map[string]any) {
	if _, ok := payload["is_active"]; ok {
		return
	}
	if v, ok := src["active"]; ok && v != nil {
		payload["is_active"] = v
	}
}

func filter(e map[string]any, policy Policy) map[string]any {
	payload := make(map[string]any, len(e))
	for k, v := range e {
		if v == nil || !policy.Permits(k) {
			continue
		}
		payload[k] = deepCopy(v)
	}
	return payload
}

// productCodes keeps only type and code of each entry.
func productCodes(v any) []any {
	list, _ := v.([]any)
	var out []any
	for _, item := range list {
		m := asMap(item)
		if m == nil {
			continue
		}
		code := make(map[string]any)
		for _, k := range []string{"type", "code"} {
			if val, ok := m[k]; ok && val != nil {
				code[k] = val
			}
		}
		if len(code) > 0 {
			out = append(out, code)
		}
	}
	return out
}

func productSuppliers(v any) []models.ProductSupplier {
	list, _ := v.([]any)
	var out []models.ProductSupplier
	for _, item := range list {
		m := asMap(item)
		if m == nil {
			continue
		}
		ps := models.ProductSupplier{Price: m["price"]}
		ps.SupplierID, _ = m["supplier_id"].(string)
		ps.Code, _ = m["code"].(string)
		if ps.SupplierID == "" && ps.Price == nil && ps.Code == "" {
			continue
		}
		out = append(out, ps)
	}
	return out
}

func definitions(v any) []models.VariantDefinition {
	list, _ := v.([]any)
	var out []models.VariantDefinition
	for _, item := range list {
		m := asMap(item)
		if m == nil {
			continue
		}
		var d models.VariantDefinition
		d.AttributeID, _ = m["attribute_id"].(string)
		if val := m["value"]; val != nil {
			d.Value = fmt.Sprint(val)
		}
		if d.AttributeID == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Identifier is the human readable key recorded with results: sku or name for products, the
// person or company for customers, the name otherwise.
func Identifier(e models.SourceEntity, t models.EntityType) string {
	switch t {
	case models.Products:
		if sku := e.String("sku"); sku != "" {
			return sku
		}
		return e.Name()
	case models.Customers:
		name := strings.TrimSpace(e.String("first_name") + " " + e.String("last_name"))
		switch {
		case name != "":
			return name
		case e.String("company_name") != "":
			return e.String("company_name")
		default:
			return e.String("email")
		}
	default:
		return e.Name()
	}
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case models.SourceEntity:
		return m
	default:
		return nil
	}
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case models.SourceEntity:
		return deepCopy(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

// Lookup returns the destination id recorded for a source id.
type Lookup func(t models.EntityType, sourceID string) (string, bool)

// Bind returns the create payload of te with every dependency rewritten to destination ids.
//
// Unmapped brand and supplier references are dropped. A variant definition whose attribute has
// no destination id fails with [shared.ErrUnresolvedDependency]: the product must not be posted.
func Bind(te models.TransformedEntity, lookup Lookup) (map[string]any, error) {
	payload := maps.Clone(te.Payload)
	if payload == nil {
		payload = make(map[string]any)
	}
	d := te.Deps

	if id, ok := resolve(lookup, models.Brands, d.BrandID); ok {
		payload["brand_id"] = id
	}
	if id, ok := resolve(lookup, models.Suppliers, d.SupplierID); ok {
		payload["supplier_id"] = id
	}

	var suppliers []any
	for _, ps := range d.ProductSuppliers {
		entry := make(map[string]any)
		if id, ok := resolve(lookup, models.Suppliers, ps.SupplierID); ok {
			entry["supplier_id"] = id
		}
		if ps.Price != nil {
			entry["price"] = ps.Price
		}
		if ps.Code != "" {
			entry["code"] = ps.Code
		}
		if len(entry) > 0 {
			suppliers = append(suppliers, entry)
		}
	}
	if len(suppliers) > 0 {
		payload["product_suppliers"] = suppliers
	}

	if len(d.VariantDefinitions) > 0 {
		defs, err := bindDefinitions(d.VariantDefinitions, lookup)
		if err != nil {
			return nil, err
		}
		payload["variant_definitions"] = defs
	}

	if len(d.Variants) > 0 {
		variants := make([]any, 0, len(d.Variants))
		for _, v := range d.Variants {
			fields := maps.Clone(v.Fields)
			if fields == nil {
				fields = make(map[string]any)
			}
			if len(v.Definitions) > 0 {
				defs, err := bindDefinitions(v.Definitions, lookup)
				if err != nil {
					return nil, err
				}
				fields["variant_definitions"] = defs
			}
			variants = append(variants, fields)
		}
		payload["variants"] = variants
	}

	return payload, nil
}

func bindDefinitions(defs []models.VariantDefinition, lookup Lookup) ([]any, error) {
	out := make([]any, 0, len(defs))
	for _, d := range defs {
		id, ok := resolve(lookup, models.VariantAttributes, d.AttributeID)
		if !ok {
			return nil, fmt.Errorf("%w: variant attribute %s", shared.ErrUnresolvedDependency, d.AttributeID)
		}
		out = append(out, map[string]any{"attribute_id": id, "value": d.Value})
	}
	return out, nil
}

func resolve(lookup Lookup, t models.EntityType, sourceID string) (string, bool) {
	if sourceID == "" || lookup == nil {
		return "", false
	}
	return lookup(t, sourceID)
}

// AttributeIDs returns every source attribute id te depends on, first occurrence first.
func AttributeIDs(te models.TransformedEntity) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(defs []models.VariantDefinition) {
		for _, d := range defs {
			if !seen[d.AttributeID] {
				seen[d.AttributeID] = true
				ids = append(ids, d.AttributeID)
			}
		}
	}
	add(te.Deps.VariantDefinitions)
	for _, v := range te.Deps.Variants {
		add(v.Definitions)
	}
	return ids
}

// SupplierIDs returns every source supplier id te depends on, first occurrence first.
func SupplierIDs(te models.TransformedEntity) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, id := range append([]string{te.Deps.SupplierID}, supplierRefs(te.Deps.ProductSuppliers)...) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func supplierRefs(list []models.ProductSupplier) []string {
	out := make([]string, 0, len(list))
	for _, ps := range list {
		out = append(out, ps.SupplierID)
	}
	return out
}
