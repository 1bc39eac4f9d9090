package vfs

import (
	"fmt"
	"sort"
)

// CheckReport is the outcome of an integrity walk.
type CheckReport struct {
	Directories int      `json:"directories" yaml:"directories"`
	Files       int      `json:"files" yaml:"files"`
	Clusters    int      `json:"clusters" yaml:"clusters"`
	Problems    []string `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// OK reports whether the walk found no problems
func (r *CheckReport) OK() bool {
	return len(r.Problems) == 0
}

func (r *CheckReport) addf(format string, args ...interface{}) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Check walks every file chain and cross-checks it against the allocator.
// Corrupt clusters are reported as problems; host I/O failures abort the walk.
func (fs *FS) Check() (*CheckReport, error) {
	if err := fs.requireOpen("Check"); err != nil {
		return nil, err
	}

	report := &CheckReport{}
	owner := make(map[ClusterID]string)

	for _, id := range fs.header.ClusterMaps {
		owner[id] = "cluster map"
	}
	for _, id := range fs.index.Clusters() {
		owner[id] = "node index"
	}

	var walk func(d *Directory) error
	walk = func(d *Directory) error {
		report.Directories++
		if d.node.clusterCount != 0 || d.node.firstCluster != NoCluster {
			report.addf("%s: directory owns data clusters", d.Path())
		}
		for _, f := range d.files {
			report.Files++
			path := d.Path()
			if !d.IsRoot() {
				path += Separator
			}
			if err := fs.checkChain(report, owner, path+f.name, f); err != nil {
				return err
			}
		}
		for _, c := range d.dirs {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(fs.tree.root); err != nil {
		return nil, err
	}

	for id := range owner {
		used, err := fs.maps.Used(id)
		if err != nil || !used {
			report.addf("cluster %d (%s) is not marked used", id, owner[id])
		}
	}

	var leaked []int
	for i := 0; i < fs.maps.SlotCount(); i++ {
		id := ClusterID(i)
		if used, _ := fs.maps.Used(id); used {
			if _, ok := owner[id]; !ok {
				leaked = append(leaked, i)
			}
		}
	}
	sort.Ints(leaked)
	for _, id := range leaked {
		report.addf("cluster %d is allocated but unreferenced", id)
	}

	report.Clusters = len(owner)
	return report, nil
}

func (fs *FS) checkChain(report *CheckReport, owner map[ClusterID]string, path string, node *Node) error {
	usable := int64(fs.header.UsableClusterSize())

	count := int32(0)
	prev := NoCluster
	for id := node.firstCluster; id != NoCluster; {
		if count >= node.clusterCount {
			report.addf("%s: chain is longer than %d clusters", path, node.clusterCount)
			break
		}
		if other, ok := owner[id]; ok {
			report.addf("%s: cluster %d is also used by %s", path, id, other)
			return nil
		}

		dc, err := fs.dataCluster(id)
		if err != nil {
			if IsCorrupt(err) || IsInvalidOperation(err) {
				report.addf("%s: cluster %d: %v", path, id, err)
				return nil
			}
			return err
		}
		if dc.previous != prev {
			report.addf("%s: cluster %d links back to %d, expected %d", path, id, dc.previous, prev)
		}

		owner[id] = path
		count++
		prev = id
		id = dc.next
	}

	if count != node.clusterCount {
		report.addf("%s: chain holds %d clusters, node records %d", path, count, node.clusterCount)
	}
	if prev != node.lastCluster {
		report.addf("%s: chain ends at %d, node records %d", path, prev, node.lastCluster)
	}

	capacity := int64(node.clusterCount) * usable
	if node.fileSize > capacity || (node.clusterCount > 0 && node.fileSize <= capacity-usable) {
		report.addf("%s: size %d does not fit %d clusters", path, node.fileSize, node.clusterCount)
	}
	return nil
}
