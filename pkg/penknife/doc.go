// Package penknife implements a small template language.
//
// A template is literal text interleaved with commands between the open and
// close markers ({{ and }} by default):
//
//	{{name}}                 interpolate; {{name, fallback}} supplies a default
//	{{?cond}}..{{!?cond}}..{{/?cond}}
//	                         conditional with optional else branch
//	{{@list}}..{{/@list}}    loop over a mapping; {{@list,row}} names the loop
//	{{loop.#}} {{loop.#.1}}  current key, row number plus a bias
//	{{row.field}}            member of the current element
//	{{:include file.html}}   splice another template in at parse time
//
// Values the engine cannot find in an active loop are requested from a
// Resolver supplied to each Format call. Every Format call segments, parses
// and executes the template from scratch.
package penknife
