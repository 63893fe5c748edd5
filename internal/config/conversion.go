package config

import (
	"reflect"

	"github.com/iwvelando/otica-forecast/pkg/finance"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StringToProfileHookFunc decodes "30_60" or "custom(20,50,30)" into a
// finance.Profile. Unknown names keep the name without shares so that
// Sanitize reports them instead of failing the load.
func StringToProfileHookFunc() mapstructure.DecodeHookFuncType {
	profileType := reflect.TypeOf(finance.Profile{})
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != profileType || f.Kind() != reflect.String {
			return data, nil
		}
		return finance.ProfileFromString(data.(string)), nil
	}
}

// CanonicalJSON renders the bundle with sorted map keys. Two bundles with the
// same content always produce the same bytes.
func (b AssumptionBundle) CanonicalJSON() ([]byte, error) {
	return json.Marshal(b)
}
