package enums

import "fmt"

// DiscountType maps to the discount_type_enum enum in Postgres.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var validDiscountTypes = []DiscountType{
	DiscountTypePercentage,
	DiscountTypeFixed,
}

// IsValid reports whether the value matches the canonical discount type enum.
func (t DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}

// DiscountTarget maps to the discount_target_enum enum in Postgres.
type DiscountTarget string

const (
	DiscountTargetAll      DiscountTarget = "all"
	DiscountTargetCategory DiscountTarget = "category"
	DiscountTargetProduct  DiscountTarget = "product"
)

var validDiscountTargets = []DiscountTarget{
	DiscountTargetAll,
	DiscountTargetCategory,
	DiscountTargetProduct,
}

// IsValid reports whether the value matches the canonical discount target enum.
func (t DiscountTarget) IsValid() bool {
	for _, candidate := range validDiscountTargets {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseDiscountTarget converts raw input into DiscountTarget.
func ParseDiscountTarget(value string) (DiscountTarget, error) {
	for _, candidate := range validDiscountTargets {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount target %q", value)
}
