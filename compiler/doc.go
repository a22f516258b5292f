/*

Process of compilation

Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	front ->
Intermediate Representation (ir) ->
	back ->
Assembly Text (riscv)

Constants are folded in front and never reach ir.
Every ir value owns a stack slot in the frame of its block,
registers only cache slot contents inside a block.

*/
package compiler
