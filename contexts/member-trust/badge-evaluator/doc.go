// Package badgeevaluator awards achievement badges from reputation profile
// thresholds. Rules are declarative predicates over a profile snapshot;
// one rule consults external invite statistics. Badges are permanent and
// unique per (wallet, type).
package badgeevaluator
