package biz

import (
	"context"
)

// TokenKind 词条判别类型。
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenName
	TokenHouseNumber
	TokenPostcode
	TokenCountry
	TokenSpecial
)

func (k TokenKind) String() string {
	switch k {
	case TokenWord:
		return "word"
	case TokenName:
		return "name"
	case TokenHouseNumber:
		return "housenumber"
	case TokenPostcode:
		return "postcode"
	case TokenCountry:
		return "country"
	case TokenSpecial:
		return "special"
	}
	return "unknown"
}

// TokenKey 词条键。Text 需已规范化。
type TokenKey struct {
	Kind        TokenKind
	Text        string
	CountryCode string
	Class       string
	Type        string
	Operator    string
}

// Tokenizer 规范化文本并分配稳定的整数 token。
// 同一 (文本, 判别字段) 在任意并发下都返回同一个 token。
type Tokenizer interface {
	Normalize(text string) string
	// TokenFor 返回 false 表示该文本不产生 token（例如高频词）
	TokenFor(ctx context.Context, key TokenKey) (int64, bool, error)
	// TokensForWords 对文本的每个部分词返回 token
	TokensForWords(ctx context.Context, text string) ([]int64, error)
}

// WordStatistics 离线维护词频与特殊短语。
type WordStatistics interface {
	RefreshWordFrequencies(ctx context.Context) (int64, error)
	SaveSpecialPhrases(ctx context.Context, phrases []SpecialPhrase) (int, error)
}

// SpecialPhrase 特殊短语，如 "restaurant in" -> amenity/restaurant。
type SpecialPhrase struct {
	Label    string
	Class    string
	Type     string
	Operator string // "in" | "near" | ""
}
