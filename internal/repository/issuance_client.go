package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	gerrors "github.com/Wei-Shaw/tokengate/internal/pkg/errors"
	"github.com/Wei-Shaw/tokengate/internal/service"
	"github.com/Wei-Shaw/tokengate/internal/util/issuererror"
	"github.com/Wei-Shaw/tokengate/internal/util/logredact"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// issuanceClient exchanges client credentials for an access token over HTTPS.
// Every failure comes back as a classified gateway error so the retry policy
// and the facade never inspect transport details themselves.
type issuanceClient struct {
	baseURLOverride string
	tokenPath       string
	bodyEncoding    string
	extraParams     map[string]string
	defaultTTL      time.Duration
	client          *req.Client
}

func NewIssuanceClient(cfg *config.Config) service.IssuanceClient {
	return &issuanceClient{
		baseURLOverride: cfg.Issuer.BaseURL,
		tokenPath:       cfg.Issuer.TokenPath,
		bodyEncoding:    cfg.Issuer.BodyEncoding,
		extraParams:     cfg.Issuer.ExtraParams,
		defaultTTL:      cfg.Issuer.DefaultTokenTTL(),
		client:          createIssuerClient(cfg.Issuer.Timeout(), cfg.Issuer.ProxyURL),
	}
}

func createIssuerClient(timeout time.Duration, proxyURL string) *req.Client {
	client := req.C().
		SetTimeout(timeout).
		SetUserAgent("tokengate")

	if strings.TrimSpace(proxyURL) != "" {
		client.SetProxyURL(strings.TrimSpace(proxyURL))
	}

	return client
}

func (s *issuanceClient) Issue(ctx context.Context, creds *service.Credentials) (*service.IssuedToken, error) {
	// Reject unusable credentials before any network traffic.
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := s.endpointFor(creds)
	if err != nil {
		return nil, err
	}

	bodyMap := map[string]string{
		"environment_id": creds.EnvironmentID,
		"client_id":      creds.ClientID,
		"client_secret":  creds.ClientSecret,
	}
	for k, v := range s.extraParams {
		bodyMap[k] = v
	}

	log.Printf("[Issuance] POST %s (encoding=%s)", endpoint, s.bodyEncoding)
	redacted, _ := json.Marshal(logredact.RedactMap(toAnyMap(bodyMap)))
	log.Printf("[Issuance] request body: %s", redacted)

	request := s.client.R().SetContext(ctx)
	if s.bodyEncoding == domain.IssuanceBodyForm {
		request.SetFormData(bodyMap)
	} else {
		raw, err := s.jsonBody(creds)
		if err != nil {
			return nil, gerrors.Unknown("encode issuance request").WithCause(err)
		}
		request.SetBodyJsonBytes(raw)
	}

	resp, err := request.Post(endpoint)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	body := resp.Bytes()
	if !resp.IsSuccessState() {
		return nil, s.classifyIssuerRejection(resp.StatusCode, body)
	}

	accessToken := gjson.GetBytes(body, "access_token").String()
	if accessToken == "" {
		// A 2xx without a token is an issuer-side malfunction worth retrying.
		log.Printf("[Issuance] malformed success response: %s", logredact.RedactJSON(body))
		return nil, gerrors.Server("issuer response missing access_token").
			WithMetadata(map[string]string{"status": strconv.Itoa(resp.StatusCode)})
	}

	expiresIn := gjson.GetBytes(body, "expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = expiryFromJWT(accessToken)
	}
	if expiresIn <= 0 {
		expiresIn = int64(s.defaultTTL / time.Second)
	}

	log.Printf("[Issuance] token issued (expires_in=%ds)", expiresIn)
	return &service.IssuedToken{AccessToken: accessToken, ExpiresIn: expiresIn}, nil
}

// endpointFor resolves the issuance URL: an explicit base URL wins, otherwise
// the credential region selects the issuer origin.
func (s *issuanceClient) endpointFor(creds *service.Credentials) (string, error) {
	base := s.baseURLOverride
	if base == "" {
		regionBase, ok := domain.IssuerBaseURL(creds.Region)
		if !ok {
			return "", gerrors.InvalidCredentials(fmt.Sprintf("unknown region %q", creds.Region))
		}
		base = regionBase
	}
	return strings.TrimRight(base, "/") + s.tokenPath, nil
}

// jsonBody serializes the credential fields and merges configured extra
// parameters into the document.
func (s *issuanceClient) jsonBody(creds *service.Credentials) ([]byte, error) {
	raw, err := json.Marshal(map[string]string{
		"environment_id": creds.EnvironmentID,
		"client_id":      creds.ClientID,
		"client_secret":  creds.ClientSecret,
	})
	if err != nil {
		return nil, err
	}
	for k, v := range s.extraParams {
		raw, err = sjson.SetBytes(raw, k, v)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (s *issuanceClient) classifyIssuerRejection(status int, body []byte) error {
	issuerCode, issuerMsg := issuererror.ExtractErrorCodeAndMessage(body)
	message := issuerMsg
	if message == "" {
		message = fmt.Sprintf("issuer returned status %d", status)
	}
	meta := map[string]string{"status": strconv.Itoa(status)}
	if issuerCode != "" {
		meta["issuer_code"] = issuerCode
	}

	log.Printf("[Issuance] issuer rejected request: status=%d body=%s", status, logredact.RedactJSON(body))

	switch {
	case status == 401 || status == 403:
		return gerrors.Unauthorized(message).WithMetadata(meta)
	case status >= 500:
		return gerrors.Server(message).WithMetadata(meta)
	default:
		return gerrors.Unknown(message).WithMetadata(meta)
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return gerrors.Timeout("issuance request timed out").WithCause(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return gerrors.Timeout("issuance request timed out").WithCause(err)
	}
	return gerrors.Network("issuance request failed").WithCause(err)
}

// expiryFromJWT pulls the exp claim out of a JWT-shaped token without
// verifying it. The signature belongs to the issuer; only the lifetime
// matters here.
func expiryFromJWT(token string) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	remaining := int64(time.Until(exp.Time).Seconds())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
