package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/buger/jsonparser"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/mssola/user_agent"
	"golang.org/x/text/language"

	"github.com/placesgw/places-gateway/analytics"
	"github.com/placesgw/places-gateway/cache"
	"github.com/placesgw/places-gateway/config"
	"github.com/placesgw/places-gateway/errortypes"
	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/lookup"
	"github.com/placesgw/places-gateway/metrics"
	"github.com/placesgw/places-gateway/places"
)

// NewEndpoint builds the single gateway entry point handler. Every action rides
// through here: the action allow-list and the caller credential are checked before
// anything touches the provider, and a panic anywhere below is converted into a
// gateway_exception response rather than a dropped connection.
func NewEndpoint(
	fetcher *lookup.Fetcher,
	responseCache *cache.Cache,
	cfg *config.Configuration,
	paramsValidator gwapi.ActionParamValidator,
	presets places.FieldMaskPresets,
	defaultParams json.RawMessage,
	metricsEngine metrics.MetricsEngine,
	gatewayAnalytics analytics.Module,
) (httprouter.Handle, error) {
	if fetcher == nil || fetcher.Client == nil || responseCache == nil || cfg == nil || paramsValidator == nil || metricsEngine == nil || gatewayAnalytics == nil {
		return nil, errors.New("NewEndpoint requires non-nil arguments.")
	}

	deps := &endpointDeps{
		fetcher:          fetcher,
		client:           fetcher.Client,
		cache:            responseCache,
		cfg:              cfg,
		paramsValidator:  paramsValidator,
		presets:          presets,
		defaultParams:    defaultParams,
		metricsEngine:    metricsEngine,
		gatewayAnalytics: gatewayAnalytics,
	}
	return deps.Gateway, nil
}

type endpointDeps struct {
	fetcher          *lookup.Fetcher
	client           *places.Client
	cache            *cache.Cache
	cfg              *config.Configuration
	paramsValidator  gwapi.ActionParamValidator
	presets          places.FieldMaskPresets
	defaultParams    json.RawMessage
	metricsEngine    metrics.MetricsEngine
	gatewayAnalytics analytics.Module
}

func (deps *endpointDeps) Gateway(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := time.Now()

	ao := analytics.GatewayObject{
		TransactionID: newTransactionID(),
		Status:        http.StatusInternalServerError,
		UserAgent:     r.UserAgent(),
	}
	labels := metrics.Labels{
		Browser:       browserFromRequest(r),
		CacheFlag:     metrics.CacheSkip,
		RequestStatus: metrics.RequestStatusErr,
	}

	defer func() {
		deps.metricsEngine.RecordRequest(labels)
		deps.metricsEngine.RecordRequestTime(labels, time.Since(start))
		logWarnings(ao.TransactionID, ao.Errors)
		if ao.Action != gwapi.ActionBatchDetails {
			deps.gatewayAnalytics.LogGatewayObject(&ao)
		}
	}()
	defer func() {
		if recovered := recover(); recovered != nil {
			glog.Errorf("Gateway recovered panic during %s: %v. Stack trace is: %v",
				ao.Action.String(), recovered, string(debug.Stack()))
			deps.metricsEngine.RecordPanic(labels.Action)
			labels.RequestStatus = metrics.RequestStatusErr
			gatewayErr := &errortypes.GatewayError{Message: fmt.Sprintf("%v", recovered)}
			ao.Errors = append(ao.Errors, gatewayErr)
			deps.writeTypedError(w, &ao, gatewayErr)
		}
	}()

	deps.serve(w, r, &labels, &ao)
}

func (deps *endpointDeps) serve(w http.ResponseWriter, r *http.Request, labels *metrics.Labels, ao *analytics.GatewayObject) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInput(w, ao, "invalid_params")
		return
	}

	rawAction := r.URL.Query().Get("action")
	if rawAction == "" && len(body) > 0 {
		if fromBody, err := jsonparser.GetString(body, "action"); err == nil {
			rawAction = fromBody
		}
	}

	// The allow-list runs before the credential check: an unknown action is a 400
	// even for a caller with no key at all.
	action, valid := gwapi.GetActionName(rawAction)
	if !valid {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInput(w, ao, "invalid_action")
		return
	}
	labels.Action = action
	ao.Action = action

	secret := deps.cfg.Gateway.SecretKey
	if secret == "" || r.Header.Get("x-gateway-key") != secret {
		labels.RequestStatus = metrics.RequestStatusUnauthorized
		unauthorized := &errortypes.Unauthorized{Message: "invalid or missing x-gateway-key"}
		ao.Errors = append(ao.Errors, unauthorized)
		deps.writeTypedError(w, ao, unauthorized)
		return
	}

	if action == gwapi.ActionHealth {
		labels.RequestStatus = metrics.RequestStatusOK
		deps.writeResponse(w, ao, http.StatusOK, map[string]interface{}{
			"ok":           true,
			"cacheEntries": deps.cache.Len(),
		})
		return
	}

	if !deps.client.HasCredential() {
		labels.RequestStatus = metrics.RequestStatusErr
		missing := &errortypes.MissingCredential{Message: "google.api_key is not configured"}
		ao.Errors = append(ao.Errors, missing)
		deps.writeTypedError(w, ao, missing)
		return
	}

	params := body
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	if len(deps.defaultParams) > 0 {
		if merged, err := jsonpatch.MergePatch(deps.defaultParams, params); err == nil {
			params = merged
		} else {
			ao.Errors = append(ao.Errors, &errortypes.Warning{
				Message:     fmt.Sprintf("could not merge default params: %v", err),
				WarningCode: errortypes.DefaultParamsMergeWarningCode,
			})
		}
	}

	// The configured deadline bounds each outbound call; zero leaves the request
	// context untouched.
	ctx := r.Context()
	if deps.cfg.DefaultTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(deps.cfg.DefaultTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	switch action {
	case gwapi.ActionSearchText:
		deps.handleSearchText(w, ctx, params, labels, ao)
	case gwapi.ActionNearbySearch:
		deps.handleNearbySearch(w, ctx, params, labels, ao)
	case gwapi.ActionDetails:
		deps.handleDetails(w, ctx, params, labels, ao)
	case gwapi.ActionAutocomplete:
		deps.handleAutocomplete(w, ctx, params, labels, ao)
	case gwapi.ActionBatchDetails:
		deps.handleBatchDetails(w, ctx, params, labels, ao)
	}
}

func (deps *endpointDeps) handleSearchText(w http.ResponseWriter, ctx context.Context, params json.RawMessage, labels *metrics.Labels, ao *analytics.GatewayObject) {
	query := stringParam(params, "textQuery")
	if query == "" {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInput(w, ao, "missing_textQuery")
		return
	}
	if !deps.validateParams(w, gwapi.ActionSearchText, params, labels, ao) {
		return
	}

	req := &places.TextSearchRequest{
		TextQuery:    query,
		RegionCode:   stringParam(params, "regionCode"),
		IncludedType: stringParam(params, "includedType"),
	}
	req.PageSize, _ = intParam(params, "pageSize")

	languageCode, ok := deps.parseLanguageCode(w, params, labels, ao)
	if !ok {
		return
	}
	req.LanguageCode = languageCode

	resp, err := deps.fetcher.SearchText(ctx, req)
	deps.writeUpstream(w, labels, ao, resp, err)
}

func (deps *endpointDeps) handleNearbySearch(w http.ResponseWriter, ctx context.Context, params json.RawMessage, labels *metrics.Labels, ao *analytics.GatewayObject) {
	lat, hasLat, latErr := floatParam(params, "lat")
	lng, hasLng, lngErr := floatParam(params, "lng")
	if !hasLat || !hasLng {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInput(w, ao, "missing_lat_lng")
		return
	}
	if latErr != nil || lngErr != nil ||
		!govalidator.InRange(lat, -90, 90) || !govalidator.InRange(lng, -180, 180) {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInput(w, ao, "invalid_lat_lng")
		return
	}
	if !deps.validateParams(w, gwapi.ActionNearbySearch, params, labels, ao) {
		return
	}

	req := &places.NearbySearchRequest{
		Latitude:     lat,
		Longitude:    lng,
		IncludedType: stringParam(params, "includedType"),
	}
	req.Radius, _, _ = floatParam(params, "radius")
	req.MaxResultCount, _ = intParam(params, "maxResultCount")

	resp, err := deps.fetcher.SearchNearby(ctx, req)
	deps.writeUpstream(w, labels, ao, resp, err)
}

func (deps *endpointDeps) handleDetails(w http.ResponseWriter, ctx context.Context, params json.RawMessage, labels *metrics.Labels, ao *analytics.GatewayObject) {
	placeID := stringParam(params, "placeId")
	if placeID == "" {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInput(w, ao, "missing_placeId")
		return
	}
	if !deps.validateParams(w, gwapi.ActionDetails, params, labels, ao) {
		return
	}
	fields := deps.resolveFields(params, ao)

	result, err := deps.fetcher.Details(ctx, gwapi.ActionDetails, placeID, fields)
	if result == nil {
		deps.writeUpstreamFault(w, labels, ao, err)
		return
	}
	labels.CacheFlag = metrics.CacheMiss
	if result.Cached {
		labels.CacheFlag = metrics.CacheHit
	}
	ao.Cached = result.Cached
	ao.Fallback = result.Fallback

	if err != nil {
		labels.RequestStatus = metrics.RequestStatusUpstreamErr
		ao.Errors = append(ao.Errors, err)
		deps.writeResponse(w, ao, result.Status, map[string]interface{}{
			"error": "google_error",
			"body":  result.Body,
		})
		return
	}

	labels.RequestStatus = metrics.RequestStatusOK
	deps.writeResponse(w, ao, http.StatusOK, map[string]interface{}{
		"data":   result.Data,
		"cached": result.Cached,
	})
}

func (deps *endpointDeps) handleAutocomplete(w http.ResponseWriter, ctx context.Context, params json.RawMessage, labels *metrics.Labels, ao *analytics.GatewayObject) {
	input := stringParam(params, "input")
	if input == "" {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInput(w, ao, "missing_input")
		return
	}
	if !deps.validateParams(w, gwapi.ActionAutocomplete, params, labels, ao) {
		return
	}

	req := &places.AutocompleteRequest{
		Input:      input,
		RegionCode: stringParam(params, "regionCode"),
	}
	if types := stringParam(params, "types"); types != "" {
		req.Types = splitAndTrim(types)
	}

	languageCode, ok := deps.parseLanguageCode(w, params, labels, ao)
	if !ok {
		return
	}
	req.LanguageCode = languageCode

	resp, cached, err := deps.fetcher.Autocomplete(ctx, req)
	labels.CacheFlag = metrics.CacheMiss
	if cached {
		labels.CacheFlag = metrics.CacheHit
	}
	ao.Cached = cached
	deps.writeUpstream(w, labels, ao, resp, err)
}

func (deps *endpointDeps) handleBatchDetails(w http.ResponseWriter, ctx context.Context, params json.RawMessage, labels *metrics.Labels, ao *analytics.GatewayObject) {
	bo := analytics.BatchObject{
		TransactionID: ao.TransactionID,
		UserAgent:     ao.UserAgent,
	}
	defer func() {
		deps.gatewayAnalytics.LogBatchObject(&bo)
	}()

	placeIDs, err := placeIDsParam(params)
	if err != nil || len(placeIDs) == 0 {
		labels.RequestStatus = metrics.RequestStatusBadInput
		bo.Status = http.StatusBadRequest
		deps.writeBadInputBatch(w, &bo, "missing_placeIds")
		return
	}

	// The size bound is enforced here, before any goroutine spawns or any
	// provider call goes out.
	if len(placeIDs) > lookup.MaxBatchSize {
		labels.RequestStatus = metrics.RequestStatusBadInput
		deps.writeBadInputBatch(w, &bo, "too_many_placeIds_max_50")
		return
	}
	if err := deps.paramsValidator.Validate(gwapi.ActionBatchDetails, params); err != nil {
		labels.RequestStatus = metrics.RequestStatusBadInput
		bo.Errors = append(bo.Errors, err)
		deps.writeBadInputBatch(w, &bo, "invalid_params")
		return
	}
	bo.PlaceIDs = placeIDs
	fields := deps.resolveFields(params, ao)

	results := deps.fetcher.BatchDetails(ctx, placeIDs, fields)
	bo.Results = results

	// The envelope is a 200 even when items inside failed: per-item errors are
	// data, not a request failure.
	labels.RequestStatus = metrics.RequestStatusOK
	bo.Status = http.StatusOK
	ao.Status = http.StatusOK
	out, err := json.Marshal(map[string]interface{}{"results": results})
	if err != nil {
		glog.Errorf("Gateway failed to marshal batch results: %v", err)
		labels.RequestStatus = metrics.RequestStatusErr
		bo.Status = http.StatusInternalServerError
		deps.writeBadInputBatch(w, &bo, "gateway_exception")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// validateParams runs the action's JSON schema over the merged params. It fires
// after the missing-field checks so absent required fields keep their specific
// error codes.
func (deps *endpointDeps) validateParams(w http.ResponseWriter, action gwapi.ActionName, params json.RawMessage, labels *metrics.Labels, ao *analytics.GatewayObject) bool {
	if err := deps.paramsValidator.Validate(action, params); err != nil {
		labels.RequestStatus = metrics.RequestStatusBadInput
		ao.Errors = append(ao.Errors, err)
		deps.writeBadInput(w, ao, "invalid_params")
		return false
	}
	return true
}

func (deps *endpointDeps) parseLanguageCode(w http.ResponseWriter, params json.RawMessage, labels *metrics.Labels, ao *analytics.GatewayObject) (string, bool) {
	languageCode := stringParam(params, "languageCode")
	if languageCode == "" {
		return "", true
	}
	if _, err := language.Parse(languageCode); err != nil {
		labels.RequestStatus = metrics.RequestStatusBadInput
		ao.Errors = append(ao.Errors, err)
		deps.writeBadInput(w, ao, "invalid_languageCode")
		return "", false
	}
	return languageCode, true
}

// resolveFields picks the field mask for a details-shaped call. Explicit fields win
// over a preset; no fields and no preset leaves the mask empty so the lookup layer
// applies the default.
func (deps *endpointDeps) resolveFields(params json.RawMessage, ao *analytics.GatewayObject) []string {
	if value, dataType, _, err := jsonparser.Get(params, "fields"); err == nil {
		switch dataType {
		case jsonparser.String:
			if fields := splitAndTrim(string(value)); len(fields) > 0 {
				return fields
			}
		case jsonparser.Array:
			var fields []string
			jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
				if itemType == jsonparser.String {
					fields = append(fields, string(item))
				}
			})
			if len(fields) > 0 {
				return fields
			}
		}
	}
	if preset := stringParam(params, "fieldsPreset"); preset != "" {
		if fields, ok := deps.presets.Resolve(preset); ok {
			return fields
		}
		ao.Errors = append(ao.Errors, &errortypes.Warning{
			Message:     "unknown fields preset " + preset,
			WarningCode: errortypes.UnknownPresetWarningCode,
		})
	}
	return nil
}

// writeUpstream shapes the response for the two searches and autocomplete: the
// provider payload under "data" on success, the passthrough envelope mirroring the
// provider's status on failure.
func (deps *endpointDeps) writeUpstream(w http.ResponseWriter, labels *metrics.Labels, ao *analytics.GatewayObject, resp *places.ResponseData, err error) {
	if err != nil {
		if resp == nil {
			deps.writeUpstreamFault(w, labels, ao, err)
			return
		}
		labels.RequestStatus = metrics.RequestStatusUpstreamErr
		ao.Errors = append(ao.Errors, err)
		deps.writeResponse(w, ao, resp.StatusCode, map[string]interface{}{
			"error": "google_error",
			"body":  rawOrString(resp.Body),
		})
		return
	}

	labels.RequestStatus = metrics.RequestStatusOK
	deps.writeResponse(w, ao, http.StatusOK, map[string]interface{}{
		"data": json.RawMessage(resp.Body),
	})
}

// writeUpstreamFault covers calls the provider never answered: timeouts map to 504,
// anything else is an unexpected fault.
func (deps *endpointDeps) writeUpstreamFault(w http.ResponseWriter, labels *metrics.Labels, ao *analytics.GatewayObject, err error) {
	labels.RequestStatus = metrics.RequestStatusUpstreamErr
	if errortypes.ReadCode(err) != errortypes.TimeoutErrorCode {
		labels.RequestStatus = metrics.RequestStatusErr
		err = &errortypes.GatewayError{Message: err.Error()}
	}
	ao.Errors = append(ao.Errors, err)
	deps.writeTypedError(w, ao, err)
}

func (deps *endpointDeps) writeBadInput(w http.ResponseWriter, ao *analytics.GatewayObject, code string) {
	badInput := &errortypes.BadInput{Message: code}
	ao.Errors = append(ao.Errors, badInput)
	deps.writeTypedError(w, ao, badInput)
}

func (deps *endpointDeps) writeBadInputBatch(w http.ResponseWriter, bo *analytics.BatchObject, code string) {
	var typed error = &errortypes.BadInput{Message: code}
	bo.Status = http.StatusBadRequest
	if code == "gateway_exception" {
		typed = &errortypes.GatewayError{Message: code}
		bo.Status = http.StatusInternalServerError
	}
	bo.Errors = append(bo.Errors, typed)
	out, _ := json.Marshal(map[string]interface{}{"error": code})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(bo.Status)
	w.Write(out)
}

// writeTypedError maps an error class from errortypes to its HTTP status and stable
// envelope code. BadInput messages are themselves the stable codes, so they pass
// through; the other classes pin their code and expose the message separately.
func (deps *endpointDeps) writeTypedError(w http.ResponseWriter, ao *analytics.GatewayObject, err error) {
	var status int
	var envelope map[string]interface{}
	switch errortypes.ReadCode(err) {
	case errortypes.BadInputErrorCode:
		status = http.StatusBadRequest
		envelope = map[string]interface{}{"error": err.Error()}
	case errortypes.UnauthorizedErrorCode:
		status = http.StatusUnauthorized
		envelope = map[string]interface{}{"error": "unauthorized"}
	case errortypes.MissingCredentialErrorCode:
		status = http.StatusInternalServerError
		envelope = map[string]interface{}{"error": "missing_google_api_key"}
	case errortypes.TimeoutErrorCode:
		status = http.StatusGatewayTimeout
		envelope = map[string]interface{}{"error": "upstream_timeout", "message": err.Error()}
	default:
		status = http.StatusInternalServerError
		envelope = map[string]interface{}{"error": "gateway_exception", "message": err.Error()}
	}
	deps.writeResponse(w, ao, status, envelope)
}

// logWarnings surfaces non-fatal request errors in the app log without failing
// the call.
func logWarnings(transactionID string, errs []error) {
	for _, err := range errortypes.WarningOnly(errs) {
		glog.Warningf("Gateway transaction %s warning %d: %s", transactionID, errortypes.ReadCode(err), err.Error())
	}
}

func (deps *endpointDeps) writeResponse(w http.ResponseWriter, ao *analytics.GatewayObject, status int, envelope map[string]interface{}) {
	out, err := json.Marshal(envelope)
	if err != nil {
		glog.Errorf("Gateway failed to marshal response envelope: %v", err)
		status = http.StatusInternalServerError
		out = []byte(`{"error":"gateway_exception"}`)
	}
	ao.Status = status
	ao.Response = out
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(out)
}


func newTransactionID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	return id.String()
}

func browserFromRequest(r *http.Request) metrics.Browser {
	ua := user_agent.New(r.Header.Get("User-Agent"))
	name, _ := ua.Browser()
	if name == "Safari" {
		return metrics.BrowserSafari
	}
	return metrics.BrowserOther
}

func stringParam(params []byte, key string) string {
	value, err := jsonparser.GetString(params, key)
	if err != nil {
		return ""
	}
	return value
}

func intParam(params []byte, key string) (int, error) {
	value, dataType, _, err := jsonparser.Get(params, key)
	if err != nil || dataType == jsonparser.NotExist {
		return 0, nil
	}
	switch dataType {
	case jsonparser.Number:
		parsed, err := jsonparser.ParseInt(value)
		return int(parsed), err
	case jsonparser.String:
		return strconv.Atoi(string(value))
	}
	return 0, fmt.Errorf("param %s is not a number", key)
}

func floatParam(params []byte, key string) (float64, bool, error) {
	value, dataType, _, err := jsonparser.Get(params, key)
	if err != nil || dataType == jsonparser.NotExist {
		return 0, false, nil
	}
	switch dataType {
	case jsonparser.Number:
		parsed, err := jsonparser.ParseFloat(value)
		return parsed, true, err
	case jsonparser.String:
		parsed, err := strconv.ParseFloat(string(value), 64)
		return parsed, true, err
	}
	return 0, true, fmt.Errorf("param %s is not a number", key)
}

func placeIDsParam(params []byte) ([]string, error) {
	var placeIDs []string
	_, err := jsonparser.ArrayEach(params, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
		if itemType == jsonparser.String {
			placeIDs = append(placeIDs, string(item))
		}
	}, "placeIds")
	return placeIDs, err
}

func splitAndTrim(joined string) []string {
	var out []string
	for _, piece := range strings.Split(joined, ",") {
		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func rawOrString(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return json.RawMessage(quoted)
}
