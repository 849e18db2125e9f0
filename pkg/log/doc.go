/*
Package log builds the process's zerolog loggers.

New constructs the root logger (console for humans, JSON for machines) and
each component receives a child carved off it via WithComponent. There is
no package-level global; loggers travel through constructors.
*/
package log
