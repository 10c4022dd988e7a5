// Package schema loads and caches record type descriptors.
//
// A RecordType is the immutable schema shared by all records of one kind:
// attribute names, primary keys, validation rules, relations, the table name
// and the optional timestamp, soft-delete and id policies. Types are read
// once from YAML descriptors (one <name>.yaml per type) or registered in
// code, validated, and cached in a Registry for the registry's lifetime.
//
// The Registry also carries what records need from their environment: the
// store bound to each type, the rule validator and the logger. Create one
// Registry per process (or per test) and pass it to the record package.
package schema
