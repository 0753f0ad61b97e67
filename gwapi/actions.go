package gwapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ActionName refers to one of the operations a gateway request may select
// through its "action" field.
type ActionName string

const (
	ActionSearchText   ActionName = "searchText"
	ActionNearbySearch ActionName = "nearbySearch"
	ActionDetails      ActionName = "details"
	ActionAutocomplete ActionName = "autocomplete"
	ActionBatchDetails ActionName = "batchDetails"
	ActionHealth       ActionName = "health"
)

var actionMap = map[string]ActionName{
	"searchText":   ActionSearchText,
	"nearbySearch": ActionNearbySearch,
	"details":      ActionDetails,
	"autocomplete": ActionAutocomplete,
	"batchDetails": ActionBatchDetails,
	"health":       ActionHealth,
}

// GetActionName returns the ActionName for the given string, if it exists.
// The second argument is true if the name was valid, and false otherwise.
// Anything false here is answered with the invalid_action envelope before
// credentials are even looked at.
func GetActionName(name string) (ActionName, bool) {
	actionName, ok := actionMap[name]
	return actionName, ok
}

// CoreActionNames returns the actions which proxy to the places API. These are the ones
// that need the provider credential and carry a params JSON schema. Health is excluded:
// it short-circuits inside the gateway.
func CoreActionNames() []ActionName {
	return []ActionName{
		ActionSearchText,
		ActionNearbySearch,
		ActionDetails,
		ActionAutocomplete,
		ActionBatchDetails,
	}
}

// BuildActionMap builds a map of lowercase action name to ActionName.
func BuildActionMap() map[string]ActionName {
	out := make(map[string]ActionName, len(actionMap))
	for name, action := range actionMap {
		out[name] = action
	}
	return out
}

func (name ActionName) MarshalJSON() ([]byte, error) {
	return []byte(`"` + string(name) + `"`), nil
}

func (name *ActionName) String() string {
	if name == nil {
		return ""
	}
	return string(*name)
}

// The ActionParamValidator is used to enforce the shape of each action's params before
// anything is sent upstream.
//
// This is treated differently from the required-field checks because we rely on
// JSON-schemas to validate types and ranges.
type ActionParamValidator interface {
	Validate(name ActionName, params json.RawMessage) error
	// Schema returns the JSON schema used to perform validation.
	Schema(name ActionName) string
}

// NewActionParamsValidator makes an ActionParamValidator, assuming all the necessary files
// exist in the filesystem. This will error if, for example, an action gets added but no
// JSON schema is written for it.
func NewActionParamsValidator(schemaDirectory string) (ActionParamValidator, error) {
	filesystem := http.Dir(schemaDirectory)
	fileInfos, err := ioutil.ReadDir(schemaDirectory)
	if err != nil {
		return nil, fmt.Errorf("Failed to read JSON schemas from directory %s. %v", schemaDirectory, err)
	}

	schemaContents := make(map[ActionName]string, len(actionMap))
	schemas := make(map[ActionName]*gojsonschema.Schema, len(actionMap))
	for _, fileInfo := range fileInfos {
		actionName := strings.TrimSuffix(fileInfo.Name(), ".json")
		if _, isValid := GetActionName(actionName); !isValid {
			return nil, fmt.Errorf("File %s/%s does not match a valid ActionName.", schemaDirectory, fileInfo.Name())
		}

		schemaLoader := gojsonschema.NewReferenceLoaderFileSystem(fmt.Sprintf("file:///%s", fileInfo.Name()), filesystem)
		loadedSchema, err := gojsonschema.NewSchema(schemaLoader)
		if err != nil {
			return nil, fmt.Errorf("Failed to load json schema at %s/%s: %v", schemaDirectory, fileInfo.Name(), err)
		}

		fileBytes, err := ioutil.ReadFile(fmt.Sprintf("%s/%s", schemaDirectory, fileInfo.Name()))
		if err != nil {
			return nil, fmt.Errorf("Failed to read file %s/%s: %v", schemaDirectory, fileInfo.Name(), err)
		}

		schemas[ActionName(actionName)] = loadedSchema
		schemaContents[ActionName(actionName)] = string(fileBytes)
	}

	for _, coreAction := range CoreActionNames() {
		if _, ok := schemas[coreAction]; !ok {
			return nil, fmt.Errorf("No JSON schema found for action %s in %s.", coreAction, schemaDirectory)
		}
	}

	return &actionParamValidator{
		schemaContents: schemaContents,
		parsedSchemas:  schemas,
	}, nil
}

type actionParamValidator struct {
	schemaContents map[ActionName]string
	parsedSchemas  map[ActionName]*gojsonschema.Schema
}

func (validator *actionParamValidator) Validate(name ActionName, params json.RawMessage) error {
	schema, ok := validator.parsedSchemas[name]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errBuilder := bytes.NewBuffer(make([]byte, 0, 300))
		for _, err := range result.Errors() {
			errBuilder.WriteString(err.String())
		}
		return errors.New(errBuilder.String())
	}
	return nil
}

func (validator *actionParamValidator) Schema(name ActionName) string {
	return validator.schemaContents[name]
}
