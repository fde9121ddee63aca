/*
Package rowgraph materializes flat result rows into Go object graphs. Nesting
is carried by the column names themselves: "$" separates path segments, so a
row with columns "id", "address$city" and "address$geo$lat" fills ID,
Address.City and Address.Geo.Lat. You write plain SQL with aliases; rowgraph
builds the objects.

# Overview

A Mapper compiles the column names of the first row it sees into a node
tree, once per column layout, and evaluates that tree for every row. Simple
nodes read one cell; complex nodes build a nested object from their children.
Query, Get and Refresh run a query through database/sql and feed its rows to
the default Mapper for T. Any other row source can implement Row.

# Mapping rules

  - Struct fields bind by `db:"name"` first, otherwise by case-insensitive
    field name.
  - Embedded structs and `db:",inline"` fields are flattened; `db:"-"` is skipped.
  - String-keyed maps are open records: every column becomes a key, nested
    groups become nested map[string]any values.
  - A segment that matches no member but is a non-negative integer is a
    constructor argument. The arguments of one object are sorted by key and
    passed, in that order, to the unique registered constructor with that
    many parameters (see Registry). Keys need not be contiguous.
  - Other unknown columns are ignored and reported to the logger.
  - A nested object whose cells are all NULL is nil, not an empty object.
  - Load and Refresh update nested objects that already exist in place.

# Conversions

Values assignable to their target are stored as is. On the first mismatch
for a member or constructor parameter, a converter is chosen and cached on
that node for all later rows: text into bool is read as an integer (nonzero
is true), sql.Scanner targets receive the value through Scan, and everything
else is converted with github.com/spf13/cast. A pointer target takes the
converted element value. A second failure is returned as a *MappingError.

# Error handling

  - Build-time configuration errors (ErrAmbiguousArgument,
    ErrConstructorNotFound, ErrAmbiguousConstructor, ErrUnsupportedType) abort
    mapping for the whole result.
  - Per-row failures are *MappingError values naming the member, its type and
    the cell value; a row either fully materializes or fails.
  - Get and Refresh return sql.ErrNoRows when no row matches.

# Concurrency

Mappers are safe for concurrent use. Node trees are built under sync.Once
per column layout and converters are cached with compare-and-swap.
*/
package rowgraph
