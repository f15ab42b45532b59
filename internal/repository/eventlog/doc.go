// Package eventlog appends alarm events to rotating CSV files.
//
// Each row has the columns
//
//	timestamp,kind,key,point,point_name,type,priority,from,to,temperature,threshold,field,old,new,message
//
// Files rotate on a fixed period and old files are pruned by age.
package eventlog
