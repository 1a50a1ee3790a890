package models

import (
	"fmt"
	"maps"
	"strings"
)

// EntityType names a remote collection.
type EntityType string

const (
	Products          EntityType = "products"
	Customers         EntityType = "customers"
	VariantAttributes EntityType = "variant_attributes"
	Brands            EntityType = "brands"
	Suppliers         EntityType = "suppliers"
	Outlets           EntityType = "outlets"
	Inventory         EntityType = "inventory"
)

// CloneableTypes lists the types a clone run accepts, in the order they are processed.
var CloneableTypes = []EntityType{VariantAttributes, Products, Customers}

func (t EntityType) String() string { return string(t) }

// Singular returns the singular noun used in log lines and result artifacts.
func (t EntityType) Singular() string {
	switch t {
	case Products:
		return "product"
	case Customers:
		return "customer"
	case VariantAttributes:
		return "variant attribute"
	case Brands:
		return "brand"
	case Suppliers:
		return "supplier"
	case Outlets:
		return "outlet"
	case Inventory:
		return "inventory line"
	default:
		return string(t)
	}
}

// ParseEntityTypes parses a comma separated list of cloneable types, dropping duplicates
// and returning them in processing order.
func ParseEntityTypes(s string) ([]EntityType, error) {
	want := make(map[EntityType]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		t := EntityType(part)
		switch t {
		case "attributes", "variants":
			t = VariantAttributes
		}
		found := false
		for _, ct := range CloneableTypes {
			if ct == t {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown entity type %q", part)
		}
		want[t] = true
	}

	var types []EntityType
	for _, ct := range CloneableTypes {
		if want[ct] {
			types = append(types, ct)
		}
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no entity types given")
	}
	return types, nil
}

// SourceEntity is a record as returned by the source account.
type SourceEntity map[string]any

// ID returns the source-system identifier, or "" when absent.
func (e SourceEntity) ID() string { return e.String("id") }

// Name returns the natural key used for dependency matching.
func (e SourceEntity) Name() string { return e.String("name") }

// String returns the string value at key, or "" when the key is absent or not a string.
func (e SourceEntity) String(key string) string {
	if s, ok := e[key].(string); ok {
		return s
	}
	return ""
}

// Clone returns a shallow copy.
func (e SourceEntity) Clone() SourceEntity { return maps.Clone(e) }

// TransformedEntity is a creation-ready payload with dependency references lifted out.
//
// Payload never contains source-account identifiers; Deps carries them until they are resolved.
type TransformedEntity struct {
	Type     EntityType
	SourceID string
	Name     string
	Payload  map[string]any
	Deps     Dependencies
}

// Dependencies are the source-side references a payload needs before it can be created.
type Dependencies struct {
	BrandID            string
	SupplierID         string
	ProductSuppliers   []ProductSupplier
	VariantDefinitions []VariantDefinition
	Variants           []Variant
}

// Empty reports whether no dependency needs resolving.
func (d Dependencies) Empty() bool {
	return d.BrandID == "" && d.SupplierID == "" && len(d.ProductSuppliers) == 0 &&
		len(d.VariantDefinitions) == 0 && len(d.Variants) == 0
}

// ProductSupplier is one product_suppliers entry.
type ProductSupplier struct {
	SupplierID string
	Price      any
	Code       string
}

// VariantDefinition binds an attribute to a value, e.g. Color = Red.
type VariantDefinition struct {
	AttributeID string
	Value       string
}

// Variant is one member of a variant family: its own creatable fields plus its definitions.
type Variant struct {
	Fields      map[string]any
	Definitions []VariantDefinition
}

// InventoryLine is a stock level at one outlet.
type InventoryLine struct {
	OutletID      string  `json:"outlet_id"`
	CurrentAmount float64 `json:"current_amount"`
}

// Retailer is the account summary returned by the retailer endpoint.
type Retailer struct {
	Name         string `json:"name"`
	TaxExclusive bool   `json:"tax_exclusive"`
	Currency     string `json:"currency,omitempty"`
}
