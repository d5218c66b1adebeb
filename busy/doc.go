// Package busy publishes per-source busy signals and folds any number of them
// into one combined flag.
//
// A Tracker counts the outstanding requests of a single source and publishes
// true when the count leaves zero and false when it returns to zero. An
// Aggregator subscribes to N such signals and recomputes its flag with a Rule
// every time any of them changes. The default Rule is All, which reports busy
// only while every source is busy; Any reports busy while at least one is.
package busy
