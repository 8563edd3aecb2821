// Package pebblestore owns the Pebble instance behind the fact log and the
// namespace registry. It applies the configured fsync policy to every batch
// commit and reports read and commit latencies to a MetricsHook.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: cfg.Storage.DataDir,
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	log, err := factlog.Open(db, logger)
package pebblestore
