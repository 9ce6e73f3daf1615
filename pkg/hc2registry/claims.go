package hc2registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hc2-project/hc2/pkg/hc2types"
)

// ErrClaimsInvalid is returned by ValidateClaims when the registration's
// declared claims do not match the certificate it was issued under.
type ErrClaimsInvalid struct {
	Reason string
}

func (e *ErrClaimsInvalid) Error() string {
	return fmt.Sprintf("claims do not match certificate: %s", e.Reason)
}

// ValidateClaims builds a JSON Schema from cert's payload — every top-level
// claim (app, service) becomes a `const` match — and checks that reg's
// payload (excluding the embedded certificate) validates against it.
func ValidateClaims(reg hc2types.RegistrationPayload, cert hc2types.CertificatePayload) error {
	schema, err := buildClaimsSchema(cert)
	if err != nil {
		return &ErrClaimsInvalid{Reason: err.Error()}
	}

	instance := map[string]interface{}{
		"app":     reg.App,
		"service": reg.Service,
	}
	instanceJSON, err := json.Marshal(instance)
	if err != nil {
		return &ErrClaimsInvalid{Reason: "failed to encode registration for validation"}
	}
	var doc interface{}
	if err := json.Unmarshal(instanceJSON, &doc); err != nil {
		return &ErrClaimsInvalid{Reason: "failed to decode registration for validation"}
	}

	if err := schema.Validate(doc); err != nil {
		return &ErrClaimsInvalid{Reason: err.Error()}
	}
	return nil
}

func buildClaimsSchema(cert hc2types.CertificatePayload) (*jsonschema.Schema, error) {
	appConst, err := toJSONValue(cert.App)
	if err != nil {
		return nil, err
	}
	serviceConst, err := toJSONValue(cert.Service)
	if err != nil {
		return nil, err
	}

	doc := map[string]interface{}{
		"type":     "object",
		"required": []string{"app", "service"},
		"properties": map[string]interface{}{
			"app":     map[string]interface{}{"const": appConst},
			"service": map[string]interface{}{"const": serviceConst},
		},
	}

	schemaJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claims schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	const resourceName = "hc2-claims-schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to build claims schema: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile claims schema: %w", err)
	}
	return schema, nil
}

// toJSONValue round-trips v through JSON so it becomes the same
// map/slice/scalar shape jsonschema.Validate expects for const comparison.
func toJSONValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claim value: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode claim value: %w", err)
	}
	return out, nil
}
