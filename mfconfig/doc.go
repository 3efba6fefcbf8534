// Package mfconfig resolves and persists MetricFlow configuration files.
//
// A MetricFlow configuration can be supplied either as an already structured
// mapping or as a YAML document. Both are normalized to a mapping and written
// to a single YAML file, whose location is either given explicitly or taken
// from the MetricFlow default (MF_CONFIG_DIR, then $HOME/.metricflow):
//
//	h := mfconfig.NewHandler()
//	path := mfconfig.Resolve(explicit, h.FilePath)
//	if err := mfconfig.NewPersister(nil).Persist(mfconfig.Text(doc), path); err != nil {
//	    var pe *mfconfig.ParseError
//	    if errors.As(err, &pe) {
//	        // malformed YAML, nothing was written
//	    }
//	}
package mfconfig
