package data

import (
	"context"
	"fmt"
	"strings"

	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/metrics"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	tableWord       = "word"
	tokenRetryLimit = 3
)

// WordRepo 基于 word 表的 Tokenizer，前置 gocache 缓存。
type WordRepo struct {
	data    *Data
	maxFreq int64
	log     *log.Helper
}

// NewWordRepo .
func NewWordRepo(data *Data, settings *biz.Settings, logger log.Logger) *WordRepo {
	return &WordRepo{data: data, maxFreq: settings.MaxWordFrequency, log: log.NewHelper(logger)}
}

// wordRow word 表中唯一索引对应的列值。
type wordRow struct {
	token    string
	word     string
	class    string
	typ      string
	country  string
	operator string
}

func (w wordRow) cacheKey() string {
	return fmt.Sprintf("word:%s\x00%s\x00%s\x00%s\x00%s", w.token, w.class, w.typ, w.country, w.operator)
}

type cachedToken struct {
	id int64
	ok bool
}

func rowFor(key biz.TokenKey) wordRow {
	text := strings.TrimSpace(key.Text)
	switch key.Kind {
	case biz.TokenWord:
		return wordRow{token: text, word: text}
	case biz.TokenName:
		return wordRow{token: " " + text, word: text}
	case biz.TokenHouseNumber:
		return wordRow{token: " " + text, class: "place", typ: "house"}
	case biz.TokenPostcode:
		return wordRow{token: " " + text, word: text, class: "place", typ: "postcode"}
	case biz.TokenCountry:
		return wordRow{token: " " + text, class: "place", typ: "country", country: strings.ToLower(key.CountryCode)}
	default:
		return wordRow{token: " " + text, word: text, class: key.Class, typ: key.Type, operator: key.Operator}
	}
}

func (r *WordRepo) Normalize(text string) string {
	return Normalize(text)
}

// TokenFor 查找或创建 token。并发插入依赖唯一索引，冲突后重新读取。
func (r *WordRepo) TokenFor(ctx context.Context, key biz.TokenKey) (int64, bool, error) {
	if strings.TrimSpace(key.Text) == "" {
		return 0, false, nil
	}
	row := rowFor(key)
	ck := row.cacheKey()
	if v, err := r.data.cache.Get(ctx, ck); err == nil {
		if t, ok := v.(cachedToken); ok {
			metrics.TokenCacheTotal.WithLabelValues("hit").Inc()
			return t.id, t.ok, nil
		}
	}
	metrics.TokenCacheTotal.WithLabelValues("miss").Inc()
	id, count, found, err := r.lookup(ctx, row)
	for attempt := 0; err == nil && !found && attempt < tokenRetryLimit; attempt++ {
		if err = r.insert(ctx, row); err != nil {
			break
		}
		id, count, found, err = r.lookup(ctx, row)
	}
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, biz.ErrTokenizerConflict
	}
	ok := key.Kind != biz.TokenWord || r.maxFreq <= 0 || count <= r.maxFreq
	_ = r.data.cache.Set(ctx, ck, cachedToken{id: id, ok: ok})
	return id, ok, nil
}

// TokensForWords 文本每个部分词的 token，高频词被跳过。
func (r *WordRepo) TokensForWords(ctx context.Context, text string) ([]int64, error) {
	var out []int64
	for _, word := range strings.Fields(Normalize(text)) {
		id, ok, err := r.TokenFor(ctx, biz.TokenKey{Kind: biz.TokenWord, Text: word})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *WordRepo) lookup(ctx context.Context, row wordRow) (int64, int64, bool, error) {
	query, args := entsql.Dialect(r.data.dialect).Select("word_id", "search_name_count").
		From(entsql.Table(tableWord)).
		Where(entsql.And(
			entsql.EQ("word_token", row.token),
			entsql.EQ("class", row.class),
			entsql.EQ("type", row.typ),
			entsql.EQ("country_code", row.country),
			entsql.EQ("operator", row.operator),
		)).
		Query()
	rows, err := r.data.SQLDB().QueryContext(ctx, query, args...)
	if err != nil {
		return 0, 0, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, 0, false, rows.Err()
	}
	var id, count int64
	if err := rows.Scan(&id, &count); err != nil {
		return 0, 0, false, err
	}
	return id, count, true, nil
}

func (r *WordRepo) insert(ctx context.Context, row wordRow) error {
	ins := entsql.Dialect(r.data.dialect).Insert(tableWord).
		Columns("word_token", "word", "class", "type", "country_code", "operator", "search_name_count").
		Values(row.token, nullString(row.word), row.class, row.typ, row.country, row.operator, 0)
	if r.data.dialect == dialect.MySQL {
		ins.OnConflict(entsql.DoNothing())
	} else {
		ins.OnConflict(entsql.ConflictColumns("word_token", "class", "type", "country_code", "operator"), entsql.DoNothing())
	}
	query, args := ins.Query()
	_, err := r.data.SQLDB().ExecContext(ctx, query, args...)
	return err
}

// RefreshWordFrequencies 统计每个部分词在搜索索引中出现的次数并写回 word 表。
func (r *WordRepo) RefreshWordFrequencies(ctx context.Context) (int64, error) {
	db := r.data.SQLDB()
	b := entsql.Dialect(r.data.dialect)
	query, args := b.Select("name_vector", "nameaddress_vector").From(entsql.Table(tableSearchName)).Query()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	counts := map[int64]int64{}
	for rows.Next() {
		var names, addrs string
		if err := rows.Scan(&names, &addrs); err != nil {
			rows.Close()
			return 0, err
		}
		for _, id := range biz.UnionTokens(decodeTokens(names), decodeTokens(addrs)) {
			counts[id]++
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	reset := b.Update(tableWord).Set("search_name_count", 0)
	query, args = reset.Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	var updated int64
	for id, n := range counts {
		query, args := b.Update(tableWord).Set("search_name_count", n).
			Where(entsql.And(entsql.EQ("word_id", id), entsql.EQ("class", ""))).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		affected, _ := res.RowsAffected()
		updated += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := r.data.cache.Clear(ctx); err != nil {
		r.log.WithContext(ctx).Warnf("clear token cache: %v", err)
	}
	return updated, nil
}

// SaveSpecialPhrases 为每个特殊短语创建 token。
func (r *WordRepo) SaveSpecialPhrases(ctx context.Context, phrases []biz.SpecialPhrase) (int, error) {
	n := 0
	for _, ph := range phrases {
		label := Normalize(ph.Label)
		if label == "" || ph.Class == "" || ph.Type == "" {
			continue
		}
		if _, _, err := r.TokenFor(ctx, biz.TokenKey{
			Kind:     biz.TokenSpecial,
			Text:     label,
			Class:    ph.Class,
			Type:     ph.Type,
			Operator: ph.Operator,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
