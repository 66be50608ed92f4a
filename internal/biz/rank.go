package biz

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

//go:embed address-levels.json
var defaultAddressLevels []byte

// Ranks 分类结果。CountryCode 在 rank_search < 4 时被清空。
type Ranks struct {
	Search      int
	Address     int
	CountryCode string
}

// RankInput 分类所需的要素属性。
type RankInput struct {
	CountryCode string
	Kind        GeometryKind
	OSMType     string
	Class       string
	Type        string
	AdminLevel  int
	Capital     bool
	Postcode    string
}

// RankInputOf 从 Place 提取分类输入。
func RankInputOf(p *Place) RankInput {
	in := RankInput{
		CountryCode: p.CountryCode,
		Kind:        p.Kind(),
		OSMType:     p.OSMType,
		Class:       p.Class,
		Type:        p.Type,
		AdminLevel:  p.AdminLevel,
		Capital:     p.ExtraTags["capital"] == "yes",
	}
	if p.IsPostcode() {
		in.Postcode = firstNonEmpty(p.Address["postcode"], p.Name["ref"], p.Name["name"])
	}
	return in
}

type rankPair [2]int

type levelRule struct {
	Countries []string                       `json:"countries"`
	Tags      map[string]map[string]rankPair `json:"tags"`
}

func (r *rankPair) UnmarshalJSON(b []byte) error {
	var single int
	if err := json.Unmarshal(b, &single); err == nil {
		*r = rankPair{single, single}
		return nil
	}
	var pair []int
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("rank entry must be an int or [search, address], got %v", pair)
	}
	*r = rankPair{pair[0], pair[1]}
	return nil
}

// RankClassifier 基于 address-levels 表计算 rank_search / rank_address。
type RankClassifier struct {
	general map[string]map[string]rankPair
	country map[string]map[string]map[string]rankPair
}

// NewRankClassifier 解析 address-levels JSON。
func NewRankClassifier(data []byte) (*RankClassifier, error) {
	var rules []levelRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse address levels: %w", err)
	}
	c := &RankClassifier{
		general: map[string]map[string]rankPair{},
		country: map[string]map[string]map[string]rankPair{},
	}
	for _, rule := range rules {
		if len(rule.Countries) == 0 {
			mergeRankTags(c.general, rule.Tags)
			continue
		}
		for _, cc := range rule.Countries {
			cc = strings.ToLower(cc)
			if c.country[cc] == nil {
				c.country[cc] = map[string]map[string]rankPair{}
			}
			mergeRankTags(c.country[cc], rule.Tags)
		}
	}
	return c, nil
}

func mergeRankTags(dst map[string]map[string]rankPair, src map[string]map[string]rankPair) {
	for class, types := range src {
		if dst[class] == nil {
			dst[class] = map[string]rankPair{}
		}
		for typ, r := range types {
			dst[class][typ] = r
		}
	}
}

// DefaultRankClassifier 使用内置表。
func DefaultRankClassifier() *RankClassifier {
	c, err := NewRankClassifier(defaultAddressLevels)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadRankClassifier path 为空时使用内置表。
func LoadRankClassifier(path string) (*RankClassifier, error) {
	if path == "" {
		return DefaultRankClassifier(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRankClassifier(data)
}

// Classify 返回 false 表示要素应被丢弃（如没有邮编文本的邮编要素）。
func (c *RankClassifier) Classify(in RankInput) (Ranks, bool) {
	cc := strings.ToLower(in.CountryCode)
	var r rankPair
	switch {
	case (in.Class == "place" || in.Class == "boundary") && (in.Type == "postcode" || in.Type == "postal_code"):
		pc := strings.TrimSpace(in.Postcode)
		if pc == "" {
			return Ranks{}, false
		}
		r = postcodeRanks(cc, pc)
		if in.Kind != KindArea {
			r[1] = 0
		}
	case in.Class == "highway" && in.Kind == KindPoint:
		r = rankPair{30, 30}
	case in.Class == "landuse" && in.Kind != KindArea:
		r = rankPair{30, 30}
	default:
		r = c.lookup(cc, in)
		if in.Class == "waterway" && in.OSMType == OSMRelation {
			r[0]--
		}
		if in.Capital {
			r[0]--
		}
	}
	out := Ranks{Search: r[0], Address: r[1], CountryCode: cc}
	if out.Search < 4 {
		out.CountryCode = ""
	}
	return out, true
}

func (c *RankClassifier) lookup(cc string, in RankInput) rankPair {
	typ := in.Type
	admin := in.Class == "boundary" && in.Type == "administrative"
	if admin {
		typ = "administrative" + strconv.Itoa(adminLevelOrDefault(in.AdminLevel))
	}
	if r, ok := findRank(c.country[cc], in.Class, typ, !admin); ok {
		return r
	}
	if r, ok := findRank(c.general, in.Class, typ, !admin); ok {
		return r
	}
	if admin {
		level := min(2*adminLevelOrDefault(in.AdminLevel), 25)
		return rankPair{level, level}
	}
	return rankPair{30, 30}
}

func findRank(table map[string]map[string]rankPair, class, typ string, withDefault bool) (rankPair, bool) {
	types, ok := table[class]
	if !ok {
		return rankPair{}, false
	}
	if r, ok := types[typ]; ok {
		return r, true
	}
	if withDefault {
		r, ok := types[""]
		return r, ok
	}
	return rankPair{}, false
}

func adminLevelOrDefault(level int) int {
	if level <= 0 {
		return 15
	}
	return level
}

var (
	gbOutward  = regexp.MustCompile(`^[A-Z][A-Z]?[0-9][0-9A-Z]?$`)
	gbSector   = regexp.MustCompile(`^[A-Z][A-Z]?[0-9][0-9A-Z]? [0-9]$`)
	gbFull     = regexp.MustCompile(`^[A-Z][A-Z]?[0-9][0-9A-Z]? [0-9][A-Z][A-Z]$`)
	digits5    = regexp.MustCompile(`^[0-9]{5}$`)
	digits6    = regexp.MustCompile(`^[0-9]{6}$`)
	shortAlnum = regexp.MustCompile(`^[0-9A-Za-z]{1,5}$`)
)

// postcodeRanks 按国家与邮编形态给出 (search, address)。
func postcodeRanks(cc, postcode string) rankPair {
	pc := strings.ToUpper(strings.TrimSpace(postcode))
	switch cc {
	case "gb":
		switch {
		case gbFull.MatchString(pc):
			return rankPair{25, 5}
		case gbSector.MatchString(pc):
			return rankPair{23, 5}
		case gbOutward.MatchString(pc):
			return rankPair{21, 5}
		}
	case "sg":
		if digits6.MatchString(pc) {
			return rankPair{25, 11}
		}
	case "de":
		if digits5.MatchString(pc) {
			return rankPair{21, 11}
		}
	}
	switch {
	case shortAlnum.MatchString(pc):
		return rankPair{21, 11}
	case strings.ContainsAny(pc, " -"):
		return rankPair{25, 11}
	}
	return rankPair{21, 11}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
