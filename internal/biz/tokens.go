package biz

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// TokenInfo 一个要素物化后的 token 集合。
type TokenInfo struct {
	Names []int64
	// HouseNumber 规范化后以 ';' 连接的门牌号
	HouseNumber       string
	HouseNumberTokens []int64
	Postcode          string
	// StreetTokens/PlaceTokens 仅用于父级匹配
	StreetTokens []int64
	PlaceTokens  []int64
	// AddressTokens 加入 nameaddress_vector
	AddressTokens []int64
	IsPlaceAddr   bool
}

// HasStreet addr:street 存在。
func (t *TokenInfo) HasStreet() bool {
	return len(t.StreetTokens) > 0
}

// TokenMaterializer 将要素的名称与地址转换为 token。
type TokenMaterializer struct {
	tokenizer    Tokenizer
	suffixGlyphs []string
}

func NewTokenMaterializer(tokenizer Tokenizer, settings *Settings) *TokenMaterializer {
	return &TokenMaterializer{tokenizer: tokenizer, suffixGlyphs: settings.SuffixGlyphs}
}

var (
	multiValueSplit = regexp.MustCompile(`\s*[;,]\s*`)
	houseNumberKeys = []string{"housenumber", "streetnumber", "conscriptionnumber"}
)

// Materialize 物化名称、门牌号、邮编与地址 token。
func (m *TokenMaterializer) Materialize(ctx context.Context, p *Place) (*TokenInfo, error) {
	info := &TokenInfo{}
	names := p.Names()
	if len(names) > 0 {
		tokens, err := m.nameTokens(ctx, names)
		if err != nil {
			return nil, err
		}
		info.Names = tokens
	}
	if p.CountryCode != "" && isCountryFeature(p) {
		if err := m.countryTokens(ctx, p, names, info); err != nil {
			return nil, err
		}
	}
	if err := m.houseNumbers(ctx, p, info); err != nil {
		return nil, err
	}
	if err := m.postcode(ctx, p, info); err != nil {
		return nil, err
	}
	if err := m.address(ctx, p.Address, info); err != nil {
		return nil, err
	}
	info.Names = dedupeTokens(info.Names)
	info.AddressTokens = dedupeTokens(info.AddressTokens)
	return info, nil
}

// nameTokens 每个名称产生一个完整名 token 与各部分词 token；
// 以后缀字结尾的名称额外产生去掉后缀的完整名 token。
func (m *TokenMaterializer) nameTokens(ctx context.Context, names map[string]string) ([]int64, error) {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var tokens []int64
	for _, k := range keys {
		for _, variant := range m.nameVariants(names[k]) {
			norm := m.tokenizer.Normalize(variant)
			if norm == "" {
				continue
			}
			tok, ok, err := m.tokenizer.TokenFor(ctx, TokenKey{Kind: TokenName, Text: norm})
			if err != nil {
				return nil, err
			}
			if ok {
				tokens = append(tokens, tok)
			}
		}
		partials, err := m.tokenizer.TokensForWords(ctx, names[k])
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, partials...)
	}
	return tokens, nil
}

// nameVariants 返回名称本身以及去掉一个后缀字后的形式。
func (m *TokenMaterializer) nameVariants(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	variants := []string{name}
	for _, suffix := range m.suffixGlyphs {
		if suffix == "" || !strings.HasSuffix(name, suffix) {
			continue
		}
		stripped := strings.TrimSpace(strings.TrimSuffix(name, suffix))
		if utf8.RuneCountInString(stripped) > 0 {
			variants = append(variants, stripped)
		}
		break
	}
	return variants
}

func (m *TokenMaterializer) countryTokens(ctx context.Context, p *Place, names map[string]string, info *TokenInfo) error {
	cc := strings.ToLower(p.CountryCode)
	for _, v := range names {
		norm := m.tokenizer.Normalize(v)
		if norm == "" {
			continue
		}
		tok, ok, err := m.tokenizer.TokenFor(ctx, TokenKey{Kind: TokenCountry, Text: norm, CountryCode: cc})
		if err != nil {
			return err
		}
		if ok {
			info.Names = append(info.Names, tok)
		}
	}
	return nil
}

// SplitHouseNumbers 按逗号/分号拆分门牌号，去重并保持顺序。
func SplitHouseNumbers(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range multiValueSplit.Split(strings.TrimSpace(v), -1) {
			part = strings.TrimSpace(part)
			if part != "" && !slices.Contains(out, part) {
				out = append(out, part)
			}
		}
	}
	return out
}

func (m *TokenMaterializer) houseNumbers(ctx context.Context, p *Place, info *TokenInfo) error {
	var raw []string
	for _, k := range houseNumberKeys {
		if v := p.Address[k]; v != "" {
			raw = append(raw, v)
		}
	}
	if p.HouseNumber != "" && len(raw) == 0 {
		raw = append(raw, p.HouseNumber)
	}
	var normalized []string
	for _, hnr := range SplitHouseNumbers(raw...) {
		norm := m.tokenizer.Normalize(hnr)
		if norm == "" || slices.Contains(normalized, norm) {
			continue
		}
		normalized = append(normalized, norm)
		tok, ok, err := m.tokenizer.TokenFor(ctx, TokenKey{Kind: TokenHouseNumber, Text: norm})
		if err != nil {
			return err
		}
		if ok {
			info.HouseNumberTokens = append(info.HouseNumberTokens, tok)
		}
	}
	info.HouseNumber = strings.Join(normalized, ";")
	return nil
}

// NormalizePostcode 大写并去除首尾空白；含分隔符的值无效。
func NormalizePostcode(pc string) (string, bool) {
	pc = strings.ToUpper(strings.TrimSpace(pc))
	if pc == "" || strings.ContainsAny(pc, ":,;") {
		return "", false
	}
	return pc, true
}

func (m *TokenMaterializer) postcode(ctx context.Context, p *Place, info *TokenInfo) error {
	raw := p.Address["postcode"]
	if raw == "" && p.IsPostcode() {
		raw = firstNonEmpty(p.Name["ref"], p.Name["name"])
	}
	pc, ok := NormalizePostcode(raw)
	if !ok {
		return nil
	}
	info.Postcode = pc
	_, _, err := m.tokenizer.TokenFor(ctx, TokenKey{Kind: TokenPostcode, Text: pc, Class: "place", Type: "postcode"})
	return err
}

func (m *TokenMaterializer) address(ctx context.Context, address map[string]string, info *TokenInfo) error {
	keys := make([]string, 0, len(address))
	for k := range address {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	_, hasStreet := address["street"]
	for _, k := range keys {
		v := strings.TrimSpace(address[k])
		if v == "" || skipAddressKey(k) {
			continue
		}
		switch k {
		case "street":
			tok, ok, err := m.fullName(ctx, v)
			if err != nil {
				return err
			}
			if ok {
				info.StreetTokens = append(info.StreetTokens, tok)
			}
		case "place":
			tok, ok, err := m.fullName(ctx, v)
			if err != nil {
				return err
			}
			if ok {
				info.PlaceTokens = append(info.PlaceTokens, tok)
				info.AddressTokens = append(info.AddressTokens, tok)
			}
			partials, err := m.tokenizer.TokensForWords(ctx, v)
			if err != nil {
				return err
			}
			info.AddressTokens = append(info.AddressTokens, partials...)
			info.IsPlaceAddr = !hasStreet
		default:
			tok, ok, err := m.fullName(ctx, v)
			if err != nil {
				return err
			}
			if ok {
				info.AddressTokens = append(info.AddressTokens, tok)
			}
			partials, err := m.tokenizer.TokensForWords(ctx, v)
			if err != nil {
				return err
			}
			info.AddressTokens = append(info.AddressTokens, partials...)
		}
	}
	return nil
}

func (m *TokenMaterializer) fullName(ctx context.Context, v string) (int64, bool, error) {
	norm := m.tokenizer.Normalize(v)
	if norm == "" {
		return 0, false, nil
	}
	return m.tokenizer.TokenFor(ctx, TokenKey{Kind: TokenName, Text: norm})
}

func isCountryFeature(p *Place) bool {
	return p.Class == "place" && p.Type == "country" || p.IsAdministrative() && p.AdminLevel == 2
}

func skipAddressKey(k string) bool {
	if strings.HasPrefix(k, "_") {
		return true
	}
	switch k {
	case "country", "full", "postcode", "interpolation":
		return true
	}
	return slices.Contains(houseNumberKeys, k)
}

func dedupeTokens(tokens []int64) []int64 {
	if len(tokens) == 0 {
		return tokens
	}
	seen := make(map[int64]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UnionTokens 合并多个 token 列表并去重，保持首次出现顺序。
func UnionTokens(lists ...[]int64) []int64 {
	var out []int64
	for _, l := range lists {
		out = append(out, l...)
	}
	return dedupeTokens(out)
}
