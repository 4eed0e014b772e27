package schema

// NativeType describes a field type the store can hold, with its size limits.
// -1 means unlimited.
type NativeType struct {
	Description  string `json:"description"`
	TypeName     string `json:"type_name"`
	Type         Type   `json:"type"`
	MinLength    int    `json:"min_length"`
	MaxLength    int    `json:"max_length"`
	MinPrecision int    `json:"min_precision"`
	MaxPrecision int    `json:"max_precision"`
}

// NativeTypes returns the supported field types.
func NativeTypes() []NativeType {
	return []NativeType{
		{Description: "Whole number (integer)", TypeName: "integer", Type: TypeInt, MinLength: 0, MaxLength: 10},
		{Description: "Decimal number (real)", TypeName: "double", Type: TypeDouble, MinLength: 0, MaxLength: 32, MinPrecision: 0, MaxPrecision: 30},
		{Description: "Text, unlimited length (text)", TypeName: "text", Type: TypeString, MinLength: -1, MaxLength: -1, MinPrecision: -1, MaxPrecision: -1},
		{Description: "Boolean", TypeName: "bool", Type: TypeBool},
	}
}
