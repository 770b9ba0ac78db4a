package fs

// resolutionStatus is the three-way classification of a path walk.
type resolutionStatus int

const (
	// statusInvalid: a component was malformed, or a non-final component
	// failed to resolve to an existing directory.
	statusInvalid resolutionStatus = iota

	// statusMissingLast: everything up to the last component resolved;
	// the last component is absent from its parent directory.
	statusMissingLast

	// statusFound: the full path resolved to an existing inode.
	statusFound
)

// resolution is the outcome of a path walk, together with ownership of the
// handles it still carries. The caller must call release exactly once.
//
// Field validity by status:
//
//	statusInvalid:     parent may be set (last directory examined), inode nil
//	statusMissingLast: parent set, inode nil, name is the missing component
//	statusFound:       parent set, inode set, name is the final component
type resolution struct {
	status resolutionStatus
	parent Dir
	inode  Inode
	name   string
}

// release closes every handle the resolution still owns. Safe to call after
// takeInode.
func (r *resolution) release() {
	if r.parent != nil {
		r.parent.Close()
		r.parent = nil
	}
	if r.inode != nil {
		r.inode.Close()
		r.inode = nil
	}
}

// takeInode transfers ownership of the resolved inode to the caller.
func (r *resolution) takeInode() Inode {
	ino := r.inode
	r.inode = nil
	return ino
}

// resolve walks path starting at the root (leading separator) or at the
// session's working directory, classifying it into one of the three
// resolution outcomes.
//
// At most one directory handle is live at any point during the walk; it is
// released before being replaced. On a nil error the caller owns every
// handle the returned resolution declares, including for failure statuses.
// On a non-nil error (infrastructure failure) nothing is owned.
func (f *FileSystem) resolve(sess *Session, path string) (*resolution, error) {
	var dir Dir
	var err error

	// A leading separator selects the root; anything else resolves
	// relative to the working directory.
	if len(path) > 0 && path[0] == Separator {
		dir, err = f.dirs.OpenRoot()
	} else {
		var ino Inode
		ino, err = f.inodes.Open(sess.WorkingDirectory())
		if err == nil {
			dir, err = f.dirs.Open(ino)
			if err != nil {
				ino.Close()
			}
		}
	}
	if err != nil {
		return nil, err
	}

	res := &resolution{status: statusInvalid, parent: dir}
	rest := path

	for {
		name, st := nextComponent(&rest)
		if st == componentTooLong {
			res.status = statusInvalid
			return res, nil
		}
		if st == componentEnd {
			// Outcome set by a previous iteration, or statusInvalid
			// if none ran (a path with zero components resolves to
			// nothing). A trailing separator after a resolved final
			// component lands here too, keeping the walk's verdict.
			return res, nil
		}

		res.name = name

		ino, found, err := res.parent.Lookup(name)
		if err != nil {
			res.release()
			return nil, err
		}

		if !found {
			if rest == "" {
				res.status = statusMissingLast
			} else {
				res.status = statusInvalid
			}
			return res, nil
		}

		if rest == "" {
			res.status = statusFound
			res.inode = ino
			return res, nil
		}

		// More components follow: descend. The matched inode must be a
		// directory to keep walking.
		if !ino.IsDir() {
			ino.Close()
			res.status = statusInvalid
			return res, nil
		}

		next, err := f.dirs.Open(ino)
		if err != nil {
			ino.Close()
			res.release()
			return nil, err
		}
		res.parent.Close()
		res.parent = next
		res.status = statusInvalid
	}
}
