// Package directory stores tenant records: who exists, what state they
// are in, and how to reach their data. Memory serves tests and
// single-node setups, Postgres is the durable backend, and RedisCache is
// a read-through layer for hot lookup paths. All three satisfy Store, so
// they stack and swap freely.
package directory
