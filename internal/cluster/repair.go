package cluster

import (
	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/reasoning"
)

// Repairs counts the corrections applied to a grouping answer.
type Repairs struct {
	UnknownIDs  int
	Duplicates  int
	EmptyGroups int
	Missing     int
}

func (r Repairs) Total() int {
	return r.UnknownIDs + r.Duplicates + r.EmptyGroups + r.Missing
}

// Repair turns a grouping answer into a partition of candidates. Unknown IDs are
// ignored, an ID listed more than once stays in the first group that names it, groups
// left empty are dropped, and candidates no group names become singletons in candidate
// order after the answered groups.
func Repair(candidates []news.ScoredArticle, groups []reasoning.Group) ([]news.EventCluster, Repairs) {
	byID := make(map[string]news.ScoredArticle, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	var rep Repairs
	assigned := make(map[string]bool, len(candidates))
	clusters := make([]news.EventCluster, 0, len(groups))

	for _, g := range groups {
		var members []news.ScoredArticle
		for _, id := range g.ArticleIDs {
			c, ok := byID[id]
			switch {
			case !ok:
				rep.UnknownIDs++
				continue
			case assigned[id]:
				rep.Duplicates++
				continue
			}
			assigned[id] = true
			members = append(members, c)
		}
		if len(members) == 0 {
			rep.EmptyGroups++
			continue
		}
		clusters = append(clusters, newCluster(members, g.Label))
	}

	for _, c := range candidates {
		if assigned[c.ID] {
			continue
		}
		assigned[c.ID] = true
		rep.Missing++
		clusters = append(clusters, newCluster([]news.ScoredArticle{c}, ""))
	}
	return clusters, rep
}

// newCluster picks the best scored member as representative; an empty label falls
// back to the representative's title.
func newCluster(members []news.ScoredArticle, label string) news.EventCluster {
	best := members[0]
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
		if news.CompareScored(m, best) < 0 {
			best = m
		}
	}
	if label == "" {
		label = best.Title
	}
	return news.EventCluster{RepresentativeID: best.ID, MemberIDs: ids, Label: label}
}
