package bot

import (
	"errors"
	"strconv"

	"github.com/packdb/packdb/core/telegram/ui"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/resolver"
	"github.com/packdb/packdb/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// OnInlineQuery serves pack search: prefix match on the typed name, pages of
// cached media results, the page index echoed back as the offset cursor.
func (h *Handlers) OnInlineQuery(c tele.Context) error {
	q := c.Query()
	if q == nil {
		return nil
	}
	owner := ownerOf(c)
	name := entry.NormalizeName(q.Text)

	page := 0
	if q.Offset != "" {
		if n, err := strconv.Atoi(q.Offset); err == nil && n > 0 {
			page = n
		}
	}

	if len(name) > entry.MaxPackNameLen {
		return c.Answer(&tele.QueryResponse{
			Results: tele.Results{
				ui.NewSimpleArticleResult("name-too-long", "Name too long", "Pack names are at most 50 characters."),
			},
			CacheTime:  1,
			IsPersonal: true,
		})
	}

	var items []entry.Entry
	var hasMore bool
	if name != "" {
		var err error
		items, hasMore, err = h.resolver.Resolve(ctxOf(c), owner, name, page*h.cfg.InlinePageSize, h.cfg.InlinePageSize, storage.MatchPrefix)
		if err != nil && !errors.Is(err, resolver.ErrOffsetOverrun) {
			return err
		}
	}

	results := make(tele.Results, 0, len(items))
	for i, item := range items {
		var r tele.Result
		switch item.Type {
		case entry.TypeMedia:
			r = &tele.StickerResult{Cache: item.Data}
		case entry.TypeAnimatedMedia:
			r = &tele.GifResult{Cache: item.Data}
		default:
			continue
		}
		r.SetResultID(strconv.Itoa(page*h.cfg.InlinePageSize + i))
		results = append(results, r)
	}

	resp := &tele.QueryResponse{
		Results:    results,
		CacheTime:  1,
		IsPersonal: true,
	}
	if hasMore {
		resp.NextOffset = strconv.Itoa(page + 1)
	}
	if len(results) == 0 && page == 0 && name != "" && entry.IsDeeplinkSafe(name) {
		resp.SwitchPMText = "Create pack «" + name + "»"
		resp.SwitchPMParameter = deeplinkCreatePrefix + name
	}
	return c.Answer(resp)
}
