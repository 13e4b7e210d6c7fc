package instagram

import (
	"context"
	"encoding/json"
	"io"
	"net/url"

	"github.com/hylfro/instasweep/internal/domain"
)

// feed paginates one API feed via max_id cursors. It implements domain.Feed.
type feed struct {
	session *session
	name    string
	path    string

	nextMaxID     string
	moreAvailable bool
	started       bool
}

func (f *feed) Name() string { return f.name }

func (f *feed) MoreAvailable() bool { return f.moreAvailable }

// Next fetches the next page of posts. Once the source reports no more
// pages, subsequent calls return an empty page without hitting the network.
func (f *feed) Next(ctx context.Context) ([]domain.Post, error) {
	if f.started && !f.moreAvailable {
		return nil, nil
	}

	query := url.Values{}
	if f.nextMaxID != "" {
		query.Set("max_id", f.nextMaxID)
	}

	var resp feedResponse
	if err := f.session.getJSON(ctx, f.path, query, &resp); err != nil {
		return nil, err
	}

	f.started = true
	f.moreAvailable = resp.MoreAvailable
	f.nextMaxID = resp.NextMaxID.String()

	posts := make([]domain.Post, 0, len(resp.Items))
	for _, item := range resp.Items {
		posts = append(posts, domain.Post{
			ID:     item.PK.String(),
			Code:   item.Code,
			Author: item.User.Username,
		})
	}
	return posts, nil
}

func decodeJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}
