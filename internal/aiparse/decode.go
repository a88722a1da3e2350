package aiparse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/contaflow/bankparse/internal/statement"
)

// decodeChunk parses a sanitized model reply into raw transactions. The model
// contract is {"transactions": [...]}; anything else is a parse failure the
// caller retries with a smaller chunk.
func decodeChunk(clean string) ([]statement.RawTransaction, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", statement.ErrClassificationParse, err)
	}

	txAny, ok := parsed["transactions"]
	if !ok {
		return nil, fmt.Errorf("%w: missing 'transactions' key", statement.ErrClassificationParse)
	}
	txSlice, ok := txAny.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: 'transactions' is %T, want array", statement.ErrClassificationParse, txAny)
	}

	result := make([]statement.RawTransaction, 0, len(txSlice))
	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T, want object", statement.ErrClassificationParse, i, item)
		}

		date, err := getStringField(obj, "date", true)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", statement.ErrClassificationParse, i, err)
		}
		desc, err := getStringField(obj, "description", true)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", statement.ErrClassificationParse, i, err)
		}
		amount, err := getFloat64Field(obj, "amount", true)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", statement.ErrClassificationParse, i, err)
		}
		typeRaw, err := getStringField(obj, "type", false)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", statement.ErrClassificationParse, i, err)
		}
		reference, err := getOptionalStringField(obj, "reference")
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", statement.ErrClassificationParse, i, err)
		}
		category, err := getOptionalStringField(obj, "category")
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", statement.ErrClassificationParse, i, err)
		}
		balance, err := getOptionalFloat64Field(obj, "balance_after")
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", statement.ErrClassificationParse, i, err)
		}

		raw := statement.RawTransaction{
			DateRaw:        date,
			DescriptionRaw: desc,
			AmountRaw:      strconv.FormatFloat(amount, 'f', 2, 64),
			TypeRaw:        strings.ToUpper(typeRaw),
		}
		if reference != nil {
			raw.ReferenceRaw = *reference
		}
		if category != nil {
			raw.CategoryRaw = *category
		}
		if balance != nil {
			raw.BalanceRaw = strconv.FormatFloat(*balance, 'f', 2, 64)
		}
		result = append(result, raw)
	}
	return result, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	case nil:
		if required {
			return "", fmt.Errorf("required field %q is null", key)
		}
		return "", nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}
