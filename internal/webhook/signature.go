package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// Scheme 签名编码方式
type Scheme string

const (
	// SchemeBase64 HMAC-SHA256 摘要 base64 编码（Shopify / WooCommerce）
	SchemeBase64 Scheme = "base64"
	// SchemeStripe sha256=<hex>，兼容 t=<ts>,v1=<hex>
	SchemeStripe Scheme = "stripe"
	// SchemeHex HMAC-SHA256 摘要 hex 编码直接比较
	SchemeHex Scheme = "hex"
)

var schemeByProvider = map[string]Scheme{
	constants.ProviderShopify:     SchemeBase64,
	constants.ProviderWooCommerce: SchemeBase64,
	constants.ProviderStripe:      SchemeStripe,
	constants.ProviderMagento:     SchemeHex,
	constants.ProviderPrestaShop:  SchemeHex,
	constants.ProviderOpenCart:    SchemeHex,
	constants.ProviderWix:         SchemeHex,
	constants.ProviderSquarespace: SchemeHex,
	constants.ProviderExternal:    SchemeHex,
}

// SchemeFor 返回提供方使用的签名编码方式
func SchemeFor(provider string) (Scheme, bool) {
	scheme, ok := schemeByProvider[strings.ToLower(strings.TrimSpace(provider))]
	return scheme, ok
}

// Verifier 校验入站报文签名，始终基于收到的原始字节计算
type Verifier struct {
	StripeTolerance time.Duration
	Now             func() time.Time
}

// NewVerifier 创建签名校验器
func NewVerifier(stripeTolerance time.Duration) *Verifier {
	return &Verifier{StripeTolerance: stripeTolerance}
}

func (v *Verifier) now() time.Time {
	if v != nil && v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify 校验签名，密钥缺失与签名不匹配都会拒绝
func (v *Verifier) Verify(provider string, body []byte, header string, secret string) error {
	scheme, ok := SchemeFor(provider)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("%w: provider %s", ErrSecretMissing, provider)
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("%w: signature header is required", ErrSignatureInvalid)
	}

	switch scheme {
	case SchemeBase64:
		decoded, err := base64.StdEncoding.DecodeString(header)
		if err != nil {
			return fmt.Errorf("%w: decode base64 signature failed", ErrSignatureInvalid)
		}
		if !hmac.Equal(decoded, computeHMAC(secret, body)) {
			return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
		}
		return nil
	case SchemeStripe:
		return v.verifyStripe(secret, body, header)
	default:
		return verifyHex(secret, body, header)
	}
}

// VerifyRequest 从入站请求中取签名头后校验
func (v *Verifier) VerifyRequest(adapter Adapter, in Inbound, secret string) error {
	if adapter == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, in.Provider)
	}
	return v.Verify(adapter.Provider(), in.Body, in.FirstHeader(adapter.SignatureHeaders()...), secret)
}

// stripeDigestPrefix 简单格式的 Stripe 签名头前缀
const stripeDigestPrefix = "sha256="

func (v *Verifier) verifyStripe(secret string, body []byte, header string) error {
	if !strings.Contains(header, "v1=") {
		digest, ok := strings.CutPrefix(strings.TrimSpace(header), stripeDigestPrefix)
		if !ok {
			return fmt.Errorf("%w: missing %s prefix", ErrSignatureInvalid, stripeDigestPrefix)
		}
		return verifyHex(secret, body, digest)
	}
	timestamp, signatures, err := parseStripeSignatureHeader(header)
	if err != nil {
		return err
	}
	if v != nil && v.StripeTolerance > 0 {
		delta := math.Abs(float64(v.now().Unix() - timestamp))
		if delta > v.StripeTolerance.Seconds() {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
		}
	}
	signed := make([]byte, 0, len(body)+16)
	signed = append(signed, strconv.FormatInt(timestamp, 10)...)
	signed = append(signed, '.')
	signed = append(signed, body...)
	expected := computeHMAC(secret, signed)
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
}

func verifyHex(secret string, body []byte, header string) error {
	decoded, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return fmt.Errorf("%w: decode hex signature failed", ErrSignatureInvalid)
	}
	if !hmac.Equal(decoded, computeHMAC(secret, body)) {
		return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}
	return nil
}

func computeHMAC(secret string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(body)
	return h.Sum(nil)
}

func parseStripeSignatureHeader(signatureHeader string) (int64, []string, error) {
	timestamp := int64(0)
	signatures := make([]string, 0)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, strings.ToLower(value))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

// SignBase64 生成 base64 编码签名，供测试与种子工具构造请求
func SignBase64(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(computeHMAC(secret, body))
}

// SignHex 生成 hex 编码签名
func SignHex(secret string, body []byte) string {
	return hex.EncodeToString(computeHMAC(secret, body))
}

// Sign 按提供方的编码方式生成签名头的值
func Sign(provider, secret string, body []byte) string {
	scheme, _ := SchemeFor(provider)
	switch scheme {
	case SchemeBase64:
		return SignBase64(secret, body)
	case SchemeStripe:
		return stripeDigestPrefix + SignHex(secret, body)
	default:
		return SignHex(secret, body)
	}
}
