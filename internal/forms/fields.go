package forms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rendis/jobflow/pkg/schema"
	"github.com/robfig/cron/v3"
)

// cronParser accepts five-field specs, an optional leading seconds field, and
// descriptors such as @daily or @every 1h.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func validateField(field schema.FieldSpec, value any, result *schema.ValidationResult) {
	path := "form." + field.Prop

	if isEmpty(value) {
		if field.Required {
			result.AddError(path, schema.ErrCodeValidation, fmt.Sprintf("%s is required", fieldName(field)))
		}
		return
	}

	var msg string
	switch field.Type {
	case schema.FieldNumber:
		if _, ok := toNumber(value); !ok {
			msg = "must be a number"
		}
	case schema.FieldSwitch:
		if _, ok := value.(bool); !ok {
			msg = "must be true or false"
		}
	case schema.FieldRadio, schema.FieldSelect:
		if len(field.Options) > 0 && !hasOption(field.Options, value) {
			msg = fmt.Sprintf("value %v is not one of the options", value)
		}
	case schema.FieldCron:
		s, ok := value.(string)
		if !ok {
			msg = "must be a cron expression string"
		} else if _, err := cronParser.Parse(s); err != nil {
			msg = fmt.Sprintf("invalid cron expression: %s", err)
		}
	case schema.FieldMap, schema.FieldParams:
		msg = checkPairs(value)
	case schema.FieldInputs:
		msg = checkStrings(value)
	default:
		if _, ok := value.(string); !ok {
			msg = "must be a string"
		}
	}
	if msg != "" {
		result.AddError(path, schema.ErrCodeValidation, fmt.Sprintf("%s %s", fieldName(field), msg))
	}
}

func fieldName(field schema.FieldSpec) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Prop
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// toNumber accepts JSON numbers and numeric strings; stored forms carry both.
func toNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return numeric(v)
}

func numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func hasOption(opts []schema.FieldOption, v any) bool {
	for _, o := range opts {
		if sameValue(o.Value, v) {
			return true
		}
	}
	return false
}

// sameValue compares option values loosely so 0 from YAML matches 0.0 from JSON.
func sameValue(a, b any) bool {
	fa, aNum := numeric(a)
	fb, bNum := numeric(b)
	if aNum && bNum {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// checkPairs validates the key/value list shape used by map and params fields.
func checkPairs(v any) string {
	list, ok := v.([]any)
	if !ok {
		return "must be a list of key/value pairs"
	}
	seen := make(map[string]bool, len(list))
	for i, item := range list {
		pair, ok := item.(map[string]any)
		if !ok {
			return fmt.Sprintf("entry %d is not a key/value pair", i)
		}
		key, _ := pair["key"].(string)
		if key == "" {
			return fmt.Sprintf("entry %d has no key", i)
		}
		if seen[key] {
			return fmt.Sprintf("key %q is repeated", key)
		}
		seen[key] = true
	}
	return ""
}

func checkStrings(v any) string {
	list, ok := v.([]any)
	if !ok {
		return "must be a list of strings"
	}
	for i, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Sprintf("entry %d is not a string", i)
		}
	}
	return ""
}
