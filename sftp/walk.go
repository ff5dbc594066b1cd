package sftp

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// PutTreeOptions configures PutTree.
type PutTreeOptions struct {
	// Concurrency bounds how many files upload in parallel; 0 means 4.
	Concurrency int
	Progress    TransferProgress
}

// PutTree recursively uploads localDir's contents under remoteDir,
// fanning file uploads out across a bounded worker pool via
// errgroup.Group -- the same "cap concurrency, fail fast on first error"
// shape errgroup is built for, applied here to whole-tree SFTP transfers
// instead of a single flat list of goroutines.
func (c *Client) PutTree(localDir, remoteDir string, opts PutTreeOptions) error {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	type job struct {
		localPath  string
		remotePath string
		mode       os.FileMode
	}
	var jobs []job
	var mkdirs []string

	err := filepath.WalkDir(localDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		remotePath := filepath.ToSlash(filepath.Join(remoteDir, rel))
		if d.IsDir() {
			if rel != "." {
				mkdirs = append(mkdirs, remotePath)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		jobs = append(jobs, job{localPath: path, remotePath: remotePath, mode: info.Mode()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("sftp: walking %q: %w", localDir, err)
	}

	for _, dir := range mkdirs {
		if err := c.Mkdir(dir, 0755); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("sftp: creating remote directory %q: %w", dir, err)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			f, err := os.Open(j.localPath)
			if err != nil {
				return fmt.Errorf("sftp: opening local file %q: %w", j.localPath, err)
			}
			defer f.Close()
			_, err = c.Put(j.remotePath, f, PutOptions{Perm: j.mode, Progress: opts.Progress})
			return err
		})
	}
	return g.Wait()
}

func isAlreadyExists(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == StatusFailure
}
