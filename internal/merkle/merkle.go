// Package merkle builds the Merkle tree of an action's input root: a
// NestedDirectory accumulates (path, content) pairs, and ToDigest()
// finalizes it into a canonical REAPI v2 Directory tree, emitting every
// blob (file content and serialized directories) that needs to reach the
// CAS.
//
// Grounded on please's src/remote/utils.go dirBuilder, generalized from
// "build directory protos out of already-known BuildTarget outputs" to
// "build directory protos out of raw (path, bytes-or-symlink) input", and
// on src/remote/action.go's use of the remote-apis-sdks digest/chunker/
// uploadinfo packages to digest and chunk those protos for upload.
package merkle

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	"github.com/bazelbuild/remote-apis-sdks/go/pkg/uploadinfo"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"golang.org/x/exp/slices"
)

// Blobs accumulates every blob (files and serialized directories) that must
// reach the CAS for an input root to be usable. Keying by digest hash gives
// us dedup for free: two files with identical content, or a directory
// reused verbatim from an earlier build, are uploaded exactly once.
type Blobs map[string]*uploadinfo.Entry

// NestedDirectory is the mutable tree used to accumulate inputs before
// finalization. Sibling ordering doesn't matter until ToDigest sorts and
// serializes.
type NestedDirectory struct {
	root *node
}

type node struct {
	files       map[string]*pb.FileNode
	symlinks    map[string]*pb.SymlinkNode
	directories map[string]*node
}

func newNode() *node {
	return &node{
		files:       map[string]*pb.FileNode{},
		symlinks:    map[string]*pb.SymlinkNode{},
		directories: map[string]*node{},
	}
}

// New returns an empty NestedDirectory.
func New() *NestedDirectory {
	return &NestedDirectory{root: newNode()}
}

// AddFile records a regular file at the given path (relative to the input
// root) with the given content digest. Intermediate directories are
// created as needed.
func (d *NestedDirectory) AddFile(filePath string, contentDigest digest.Digest, executable bool) error {
	dir, base, err := d.dirFor(filePath)
	if err != nil {
		return err
	}
	dir.files[base] = &pb.FileNode{
		Name:         base,
		Digest:       contentDigest.ToProto(),
		IsExecutable: executable,
	}
	return nil
}

// AddSymlink records a symlink at the given path with the given (unfollowed) target.
func (d *NestedDirectory) AddSymlink(linkPath, target string) error {
	dir, base, err := d.dirFor(linkPath)
	if err != nil {
		return err
	}
	dir.symlinks[base] = &pb.SymlinkNode{Name: base, Target: target}
	return nil
}

func (d *NestedDirectory) dirFor(p string) (*node, string, error) {
	p = strings.Trim(path.Clean(p), "/")
	if p == "" || p == "." {
		return nil, "", fmt.Errorf("merkle: empty path")
	}
	if strings.HasPrefix(p, "../") || p == ".." {
		return nil, "", fmt.Errorf("merkle: path %q escapes the input root", p)
	}
	parts := strings.Split(p, "/")
	cur := d.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur.directories[part]
		if !ok {
			next = newNode()
			cur.directories[part] = next
		}
		cur = next
	}
	return cur, parts[len(parts)-1], nil
}

// ToDigest performs the post-order traversal described in spec.md §4.4:
// sort each directory's children lexicographically, serialize canonically,
// digest the serialization, and record the serialized bytes in blobs under
// that digest. It returns the root directory's digest.
func ToDigest(d *NestedDirectory, blobs Blobs) (digest.Digest, error) {
	return toDigest(d.root, blobs)
}

func toDigest(n *node, blobs Blobs) (digest.Digest, error) {
	dir := &pb.Directory{}
	dirNames := make([]string, 0, len(n.directories))
	for name := range n.directories {
		dirNames = append(dirNames, name)
	}
	slices.Sort(dirNames)
	for _, name := range dirNames {
		childDigest, err := toDigest(n.directories[name], blobs)
		if err != nil {
			return digest.Digest{}, err
		}
		dir.Directories = append(dir.Directories, &pb.DirectoryNode{
			Name:   name,
			Digest: childDigest.ToProto(),
		})
	}
	for _, f := range sortedFiles(n.files) {
		dir.Files = append(dir.Files, f)
	}
	for _, s := range sortedSymlinks(n.symlinks) {
		dir.Symlinks = append(dir.Symlinks, s)
	}
	entry, err := uploadinfo.EntryFromProto(dir)
	if err != nil {
		return digest.Digest{}, err
	}
	blobs[entry.Digest.Hash] = entry
	return entry.Digest, nil
}

func sortedFiles(m map[string]*pb.FileNode) []*pb.FileNode {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*pb.FileNode, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}

func sortedSymlinks(m map[string]*pb.SymlinkNode) []*pb.SymlinkNode {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*pb.SymlinkNode, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}

// AddBlobEntry records a non-directory blob (a file's content) directly
// into blobs, keyed by its digest. Callers build the entry with
// uploadinfo.EntryFromFile or uploadinfo.EntryFromBlob depending on
// whether the content is already in memory.
func AddBlobEntry(blobs Blobs, entry *uploadinfo.Entry) {
	blobs[entry.Digest.Hash] = entry
}
