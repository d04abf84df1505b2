package ibus

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/session"
)

// IBus serializes its objects as structs whose first field is the type
// name and second a property dictionary:
//
//	IBusText      (s a{sv} s v)           text, attribute list
//	IBusAttrList  (s a{sv} av)            attributes
//	IBusAttribute (s a{sv} u u u u)       type, value, start, end

func unwrap(v any) any {
	for {
		variant, ok := v.(dbus.Variant)
		if !ok {
			return v
		}
		v = variant.Value()
	}
}

func fields(v any, typeName string, min int) ([]any, error) {
	f, ok := unwrap(v).([]any)
	if !ok {
		return nil, fmt.Errorf("%s: not a struct: %T", typeName, unwrap(v))
	}
	if len(f) < min {
		return nil, fmt.Errorf("%s: %d fields, want %d", typeName, len(f), min)
	}
	if name, _ := f[0].(string); name != typeName {
		return nil, fmt.Errorf("%s: got type %q", typeName, name)
	}
	return f, nil
}

// decodeText extracts the string and attribute runs of an IBusText.
func decodeText(v any) (string, []session.Attribute, error) {
	f, err := fields(v, "IBusText", 3)
	if err != nil {
		return "", nil, err
	}
	text, ok := f[2].(string)
	if !ok {
		return "", nil, fmt.Errorf("IBusText: text is %T", f[2])
	}
	if len(f) < 4 {
		return text, nil, nil
	}
	attrs, err := decodeAttrList(f[3])
	if err != nil {
		return "", nil, err
	}
	return text, attrs, nil
}

func decodeAttrList(v any) ([]session.Attribute, error) {
	f, err := fields(v, "IBusAttrList", 3)
	if err != nil {
		return nil, err
	}
	items, ok := unwrap(f[2]).([]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("IBusAttrList: attributes are %T", f[2])
	}

	attrs := make([]session.Attribute, 0, len(items))
	for i, item := range items {
		af, err := fields(item, "IBusAttribute", 6)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		var nums [4]uint32
		for j := range nums {
			n, ok := af[2+j].(uint32)
			if !ok {
				return nil, fmt.Errorf("attribute %d: field %d is %T", i, 2+j, af[2+j])
			}
			nums[j] = n
		}
		attrs = append(attrs, session.Attribute{Type: nums[0], Value: nums[1], Start: nums[2], End: nums[3]})
	}
	return attrs, nil
}
