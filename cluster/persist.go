package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// Store is the persisted-state surface: an optional snapshot of the
// registry, with no journal. It uses one embedded buntdb database file
// for all tables, with one key prefix per table; the daemon opens it at
// "<base-path>.db". Tables are not kept in separate files. Every Save is
// a single atomic buntdb transaction that replaces each table's keys
// wholesale.
type Store struct {
	db   *buntdb.DB
	path string
}

// OpenStore opens (creating if absent) the snapshot database at path.
// An empty path disables persistence entirely; Save/Load become no-ops.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return &Store{}, nil
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open persistence store %s", path)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save snapshots the node, host, context, balancer, and domain tables
// and the version counter of r into the store; the display-only
// session-id table is not saved. Caller holds the
// node lock (Save is invoked from CONFIG/​*-APP command processors
// after a successful mutation, so the snapshot always reflects a
// consistent cross-table view).
func (s *Store) Save(r *Registry) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Update(func(tx *buntdb.Tx) error {
		if err := saveTable(tx, "node", r.NodeIDsUsed(), func(id int) interface{} { return r.ReadNode(id) }); err != nil {
			return err
		}
		if err := saveTable(tx, "host", r.HostIDsUsed(), func(id int) interface{} { return r.ReadHost(id) }); err != nil {
			return err
		}
		if err := saveTable(tx, "context", r.ContextIDsUsed(), func(id int) interface{} { return r.ReadContext(id) }); err != nil {
			return err
		}
		if err := saveTable(tx, "balancer", r.BalancerIDsUsed(), func(id int) interface{} { return r.ReadBalancer(id) }); err != nil {
			return err
		}
		if err := saveTable(tx, "domain", r.DomainsUsed(), func(id int) interface{} { return r.ReadDomain(id) }); err != nil {
			return err
		}
		_, _, err := tx.Set("version", fmt.Sprintf("%d", r.GetVersion()), nil)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "save registry snapshot")
	}
	return nil
}

func saveTable(tx *buntdb.Tx, prefix string, ids []int, get func(int) interface{}) error {
	// clear the previous snapshot for this table before writing the
	// current one - there is no journal, each Save is a full replace.
	var stale []string
	_ = tx.AscendKeys(prefix+":*", func(key, _ string) bool {
		stale = append(stale, key)
		return true
	})
	for _, key := range stale {
		if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
			return err
		}
	}
	for _, id := range ids {
		b, err := json.Marshal(get(id))
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(fmt.Sprintf("%s:%d", prefix, id), string(b), nil); err != nil {
			return err
		}
	}
	return nil
}

// Load repopulates r from the store - used at daemon startup so a
// restarted manager can rehydrate its registry from the last snapshot.
func (s *Store) Load(r *Registry) error {
	if s.db == nil {
		return nil
	}
	err := s.db.View(func(tx *buntdb.Tx) error {
		if err := loadTable(tx, "node", func(id int, data string) error {
			var n Node
			if err := json.Unmarshal([]byte(data), &n); err != nil {
				return err
			}
			_, err := r.InsertUpdateNode(&n, id, false)
			return err
		}); err != nil {
			return err
		}
		if err := loadTable(tx, "host", func(id int, data string) error {
			var h Host
			if err := json.Unmarshal([]byte(data), &h); err != nil {
				return err
			}
			r.hosts.Set(id, &h)
			return nil
		}); err != nil {
			return err
		}
		if err := loadTable(tx, "context", func(id int, data string) error {
			var c Context
			if err := json.Unmarshal([]byte(data), &c); err != nil {
				return err
			}
			r.contexts.Set(id, &c)
			return nil
		}); err != nil {
			return err
		}
		if err := loadTable(tx, "balancer", func(id int, data string) error {
			var b Balancer
			if err := json.Unmarshal([]byte(data), &b); err != nil {
				return err
			}
			r.balancers.Set(id, &b)
			r.balByName.add(b.Name, id)
			return nil
		}); err != nil {
			return err
		}
		if err := loadTable(tx, "domain", func(id int, data string) error {
			var d Domain
			if err := json.Unmarshal([]byte(data), &d); err != nil {
				return err
			}
			r.domains.Set(id, &d)
			return nil
		}); err != nil {
			return err
		}
		if v, err := tx.Get("version"); err == nil {
			var n int64
			if _, serr := fmt.Sscanf(v, "%d", &n); serr == nil {
				r.ver.v = n
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "load registry snapshot")
	}
	return nil
}

func loadTable(tx *buntdb.Tx, prefix string, apply func(id int, data string) error) error {
	var applyErr error
	err := tx.AscendKeys(prefix+":*", func(key, value string) bool {
		var id int
		if _, err := fmt.Sscanf(key, prefix+":%d", &id); err != nil {
			return true
		}
		if err := apply(id, value); err != nil {
			applyErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return applyErr
}
