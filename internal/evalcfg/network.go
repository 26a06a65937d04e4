package evalcfg

import "yqhp/eval-fanout/pkg/jsondoc"

// Network is one entry of the observation network table.
type Network struct {
	// Key is the entry name inside obs_cfg.
	Key string
	// ObsID identifies the dataset; cache units are keyed by it.
	ObsID string

	Variables []string
	SuperObs  bool

	// DataSource is the optional external reader descriptor.
	DataSource *jsondoc.Object
}

// Networks returns the observation networks in configuration order.
// Entries that are not objects are skipped; Validate reports them.
func (c *Config) Networks() []Network {
	obs, _ := c.doc.GetObject(KeyObservations)
	out := make([]Network, 0, obs.Len())
	obs.Range(func(key string, value any) bool {
		entry, ok := value.(*jsondoc.Object)
		if !ok {
			return true
		}
		out = append(out, networkFrom(key, entry))
		return true
	})
	return out
}

// Network returns the observation network stored under key.
func (c *Config) Network(key string) (Network, bool) {
	obs, _ := c.doc.GetObject(KeyObservations)
	entry, ok := obs.GetObject(key)
	if !ok {
		return Network{}, false
	}
	return networkFrom(key, entry), true
}

// NetworkKeys returns the obs_cfg keys in order.
func (c *Config) NetworkKeys() []string {
	obs, _ := c.doc.GetObject(KeyObservations)
	return obs.Keys()
}

// HasSuperObs reports whether any network is a superobservation.
func (c *Config) HasSuperObs() bool {
	for _, n := range c.Networks() {
		if n.SuperObs {
			return true
		}
	}
	return false
}

// CacheNetworks returns the networks whose data can be cached ahead of the
// analysis, which excludes superobservations.
func (c *Config) CacheNetworks() []Network {
	var out []Network
	for _, n := range c.Networks() {
		if !n.SuperObs {
			out = append(out, n)
		}
	}
	return out
}

func networkFrom(key string, entry *jsondoc.Object) Network {
	n := Network{Key: key}
	n.ObsID, _ = entry.GetString(KeyObsID)
	n.Variables, _ = entry.GetStrings(KeyObsVars)
	n.SuperObs, _ = entry.GetBool(KeySuperObs)
	n.DataSource, _ = entry.GetObject(KeyDataSource)
	return n
}
