package main

import (
	"bytes"
	"context"
	"encoding/gob"
	errs "errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

const (
	stableStorePerm = 0755
	journalBucket   = "journal"
	openTimeout     = time.Second
)

// DiskStore is the local journal of dispatch outcomes.
type DiskStore struct {
	db         *bolt.DB
	bucketName []byte
}

type DiskStoreCfg struct {
	DiskStoreDir string `env:"DISK_STORE_DIR" envDefault:"persist"`
}

func NewDB(cfg DiskStoreCfg, bucketName string) (ds *DiskStore, err error) {
	ds = &DiskStore{
		bucketName: []byte(bucketName),
	}
	if err = os.MkdirAll(cfg.DiskStoreDir, stableStorePerm); err != nil {
		return nil, err
	}

	if ds.db, err = bolt.Open(
		filepath.Join(cfg.DiskStoreDir, "store"),
		0600,
		&bolt.Options{Timeout: openTimeout},
	); err != nil {
		return nil, openError(err)
	}
	if err = ds.createBucket(bucketName); err != nil {
		return nil, errs.Join(err, ds.db.Close())
	}

	return ds, err
}

// NewReadOnlyDB opens an existing journal without creating anything. It
// still cannot open while a running relay holds the file.
func NewReadOnlyDB(cfg DiskStoreCfg, bucketName string) (ds *DiskStore, err error) {
	path := filepath.Join(cfg.DiskStoreDir, "store")
	if _, err = os.Stat(path); err != nil {
		return nil, err
	}
	ds = &DiskStore{
		bucketName: []byte(bucketName),
	}
	if ds.db, err = bolt.Open(
		path,
		0600,
		&bolt.Options{Timeout: openTimeout, ReadOnly: true},
	); err != nil {
		return nil, openError(err)
	}

	return ds, nil
}

func openError(err error) error {
	if errs.Is(err, bolt.ErrTimeout) {
		return errors.Wrap(err, "journal is locked by a running relay, read it from its GET /history endpoint")
	}

	return errors.Wrap(err, "Open")
}

func (ds *DiskStore) createBucket(name string) (err error) {
	tx, closer, err := ds.Write()
	if err != nil {
		return err
	}
	defer func() {
		err = closer(err)
	}()
	if _, err = tx.CreateBucketIfNotExists([]byte(name)); err != nil {
		return err
	}

	return nil
}

func (ds *DiskStore) Write() (
	tx *bolt.Tx,
	closer func(err error) error,
	err error,
) {
	if tx, err = ds.db.Begin(true); err != nil {
		return nil, nil, err
	}

	return tx, func(err error) error {
		if err != nil {
			return errs.Join(tx.Rollback(), err)
		}

		return tx.Commit()
	}, nil
}

func (ds *DiskStore) Read() (
	tx *bolt.Tx,
	closer func(err error) error,
	err error,
) {
	if tx, err = ds.db.Begin(false); err != nil {
		return nil, nil, err
	}

	return tx, func(err error) error {
		return errs.Join(tx.Rollback(), err)
	}, nil
}

// Insert stores entries under fresh ids, setting each entry's ID.
func (ds *DiskStore) Insert(ctx context.Context, entries ...*domain.Entry) (err error) {
	tx, closer, err := ds.Write()
	if err != nil {
		return err
	}
	defer func() {
		err = closer(err)
	}()
	bucket := tx.Bucket(ds.bucketName)
	for _, entry := range entries {
		if entry.ID, err = uuid.GenerateUUID(); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err = gob.NewEncoder(&buf).Encode(entry); err != nil {
			return errors.Wrap(err, "Encode")
		}
		if err = bucket.Put([]byte(entry.ID), buf.Bytes()); err != nil {
			return errors.Wrap(err, "Put")
		}
	}

	return nil
}

func (ds *DiskStore) listTx(tx *bolt.Tx) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	bucket := tx.Bucket(ds.bucketName)
	if bucket == nil {
		return nil, nil
	}

	return entries, bucket.ForEach(func(id, v []byte) error {
		var entry domain.Entry
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&entry); err != nil {
			return errors.Wrapf(err, "Decode %s", id)
		}
		entries = append(entries, &entry)

		return nil
	})
}

// List returns every entry, oldest first.
func (ds *DiskStore) List(ctx context.Context) (entries []*domain.Entry, err error) {
	tx, closer, err := ds.Read()
	if err != nil {
		return nil, err
	}
	defer func() {
		err = closer(err)
	}()
	if entries, err = ds.listTx(tx); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})

	return entries, nil
}

func (ds *DiskStore) Flush(ctx context.Context) (err error) {
	tx, closer, err := ds.Write()
	if err != nil {
		return err
	}
	defer func() {
		err = closer(err)
	}()
	if err = tx.DeleteBucket(ds.bucketName); err != nil {
		return err
	}
	_, err = tx.CreateBucket(ds.bucketName)

	return err
}

func (ds *DiskStore) Close() error {
	return ds.db.Close()
}
