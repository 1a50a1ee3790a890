package transform

import (
	"fmt"
	"slices"

	"github.com/desertthunder/xsx/internal/models"
)

// Policy declares which fields of a source record survive into a create payload.
//
// With an Allow list only the listed fields are kept; otherwise every field not on Deny is kept.
// Deny always wins.
type Policy struct {
	Allow []string
	Deny  []string
}

// Permits reports whether field may be sent.
func (p Policy) Permits(field string) bool {
	if slices.Contains(p.Deny, field) {
		return false
	}
	if len(p.Allow) > 0 {
		return slices.Contains(p.Allow, field)
	}
	return true
}

func (p Policy) validate() error {
	if len(p.Allow) == 0 && len(p.Deny) == 0 {
		return fmt.Errorf("empty policy")
	}
	seen := make(map[string]bool)
	for _, f := range p.Allow {
		if seen[f] {
			return fmt.Errorf("field %q allowed twice", f)
		}
		seen[f] = true
	}
	for _, f := range p.Deny {
		if slices.Contains(p.Allow, f) {
			return fmt.Errorf("field %q both allowed and denied", f)
		}
	}
	for _, f := range liftedFields {
		if slices.Contains(p.Allow, f) {
			return fmt.Errorf("dependency field %q must not be allowed", f)
		}
	}
	return nil
}

// liftedFields carry source-account ids. They are moved into [models.Dependencies] and never
// copied into a payload.
var liftedFields = []string{"brand_id", "supplier_id", "product_suppliers", "variant_definitions", "variants"}

// systemFields are stamped by the API on every record.
var systemFields = []string{"id", "version", "created_at", "updated_at", "deleted_at"}

var policies = map[models.EntityType]Policy{
	models.Products: {
		Allow: []string{
			"name", "description", "handle", "sku", "product_codes",
			"source", "source_id", "source_variant_id", "is_active",
			"price_including_tax", "price_excluding_tax", "supply_price", "supplier_code",
			"account_code_sale", "account_code_purchase", "loyalty_amount",
			"weight", "weight_unit", "length", "width", "height", "dimensions_unit",
			"all_outlets_tax",
		},
		Deny: append(slices.Clone(systemFields),
			"inventory", "inventory_count", "total_inventory", "has_inventory", "images", "attributes",
			"product_type_id", "product_category_id", "tag_ids", "outlet_taxes",
			"variant_parent_id", "variant_count", "composite", "active",
		),
	},
	models.Customers: {
		Deny: append(slices.Clone(systemFields),
			"customer_code", "year_to_date", "balance", "loyalty_balance", "loyalty_email_sent",
			"custom_field_1", "custom_field_2", "custom_field_3", "custom_field_4",
			"customer_group", "customer_group_id",
		),
	},
	models.VariantAttributes: {Allow: []string{"name"}, Deny: slices.Clone(systemFields)},
	models.Brands:            {Allow: []string{"name", "description"}, Deny: slices.Clone(systemFields)},
	models.Suppliers:         {Allow: []string{"name", "description", "contact"}, Deny: slices.Clone(systemFields)},
}

// variantPolicy applies to each member of a variant family.
var variantPolicy = Policy{
	Allow: []string{
		"sku", "supplier_code", "supply_price", "price_including_tax", "price_excluding_tax",
		"is_active", "loyalty_amount", "weight",
	},
	Deny: slices.Clone(systemFields),
}

func init() {
	for t, p := range policies {
		if err := p.validate(); err != nil {
			panic(fmt.Sprintf("transform: %s policy: %v", t, err))
		}
	}
	if err := variantPolicy.validate(); err != nil {
		panic(fmt.Sprintf("transform: variant policy: %v", err))
	}
}

// PolicyFor returns the policy of t.
func PolicyFor(t models.EntityType) (Policy, bool) {
	p, ok := policies[t]
	return p, ok
}
