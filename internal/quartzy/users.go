package quartzy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gallowaylab/plasmiddb/internal/metrics"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

type usersPage struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			FullName  string `json:"full_name"`
		} `json:"attributes"`
	} `json:"data"`
	Meta pagination `json:"meta"`
}

// FetchUsers returns every member of the group.
func (c *Client) FetchUsers(ctx context.Context) ([]plasmid.RawUser, error) {
	var out []plasmid.RawUser
	path := fmt.Sprintf("/groups/%s/users", c.opts.GroupID)

	for page, last := 1, 1; page <= last; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		var body usersPage
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"page":  strconv.Itoa(page),
				"limit": strconv.Itoa(c.opts.PageSize),
			}).
			SetResult(&body).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("quartzy: users page %d: %w", page, err)
		}
		metrics.ObserveUpstream("users", res.StatusCode())
		if res.IsError() {
			return nil, fmt.Errorf("quartzy: users page %d: %s", page, res.Status())
		}
		if l := body.Meta.Pagination.Page.Last; l > last {
			last = l
		}
		for _, u := range body.Data {
			out = append(out, plasmid.RawUser{
				ID:        u.ID,
				FirstName: u.Attributes.FirstName,
				LastName:  u.Attributes.LastName,
				FullName:  u.Attributes.FullName,
			})
		}
	}
	return out, nil
}
