// Package embedregistry provides an embed.FS-based model catalog registry that loads
// all YAML catalogs at construction (eager). Use New with an fs.FS and root path;
// Catalog performs an O(1) lookup by vendor.
// Vendor names must not contain ':' (used as cache key separator).
package embedregistry
