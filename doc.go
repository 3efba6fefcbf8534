// Package mftasks exposes MetricFlow materialization as orchestration tasks.
//
// A Runner offers two operations, Materialize and DropMaterialization. Each
// resolves the MetricFlow config path (explicit, or the MetricFlow default),
// persists the supplied config there when one is given, builds a client
// against that path and returns the client's result unchanged.
//
// Typical usage:
//
//	r := mftasks.New(mfcli.NewFactory())
//	table, err := r.Materialize(ctx, mftasks.MaterializeParams{
//	    MaterializationName: "revenue_daily",
//	    StartTime:           "2022-01-01",
//	    EndTime:             "2022-02-01",
//	    Config:              mfconfig.Text(configYAML),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(table)
package mftasks
