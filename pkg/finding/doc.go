// Package finding defines the record every scan module emits and the
// severity scale used to rank and filter those records.
//
// A Finding is a plain value: modules build it once and nothing in the
// scanner mutates it afterwards. Order of findings in a slice is the order
// in which modules produced them.
//
// Usage:
//
//	f := finding.New("xss", finding.Medium, "Parameter q reflected", "context=attribute")
//	shown := finding.Filter(all, finding.Low)
package finding
