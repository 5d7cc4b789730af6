// Package ir defines the intermediate representation consumed by the
// SQL emitter: the linear block program produced by a query frontend,
// the expression language referenced by filters and outputs, and the
// location paths that identify points in the logical traversal tree.
//
// This package contains type definitions and decoding only. All other
// internal packages import ir; ir imports nothing internal. This keeps
// the IR the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Block and Expr are sealed interfaces; backends must type-switch
//     exhaustively so a new variant is a compile-time concern
//   - NO float values anywhere - decimals are kept in text form
//   - Locations are immutable and usable as map keys
package ir
