// Package store keeps the latest inventory per agent in memory, with an
// optional TTL after which agents that stopped reporting are evicted.
package store
