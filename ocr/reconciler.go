package ocr

import "sort"

// ClusterTolerance is the Chebyshev distance, in pixels, within which two
// observations' top-left corners are considered the same printed region.
const ClusterTolerance = 15

type cluster struct {
	keyX, keyY int
	members    []Observation
}

// Reconcile merges the observations of all engines into canonical blocks.
//
// Clustering is greedy first-fit on the top-left corner: each observation
// joins the first existing cluster whose key lies within ClusterTolerance on
// both axes, otherwise it starts a new cluster keyed on its own position.
// The partition is therefore order-sensitive: an observation within
// tolerance of a cluster key chains into that cluster even when it is more
// than the tolerance away from other members. That imprecision is an
// accepted trade-off and is pinned by tests.
//
// Within a cluster, the representative is the observation from the
// highest-ranked engine; ties go to the higher confidence. Output is sorted
// by (y, x), so feeding the result back in reproduces it unchanged.
func Reconcile(observations []Observation) []Block {
	if len(observations) == 0 {
		return nil
	}

	var clusters []*cluster
	for _, obs := range observations {
		joined := false
		for _, cl := range clusters {
			if abs(obs.Box.X-cl.keyX) <= ClusterTolerance && abs(obs.Box.Y-cl.keyY) <= ClusterTolerance {
				cl.members = append(cl.members, obs)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &cluster{
				keyX:    obs.Box.X,
				keyY:    obs.Box.Y,
				members: []Observation{obs},
			})
		}
	}

	blocks := make([]Block, 0, len(clusters))
	for _, cl := range clusters {
		rep := cl.members[0]
		for _, m := range cl.members[1:] {
			if preferred(m, rep) {
				rep = m
			}
		}
		blocks = append(blocks, Block(rep))
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Box.Y != blocks[j].Box.Y {
			return blocks[i].Box.Y < blocks[j].Box.Y
		}
		return blocks[i].Box.X < blocks[j].Box.X
	})
	return blocks
}

// preferred reports whether a should represent a cluster over b.
func preferred(a, b Observation) bool {
	ra, rb := sourceRank(a.Source), sourceRank(b.Source)
	if ra != rb {
		return ra < rb
	}
	return a.Confidence > b.Confidence
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
