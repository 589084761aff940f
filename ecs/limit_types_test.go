package ecs_test

import "github.com/plus3/arkecs/ecs"

// limitTypes registers one more distinct type than a registry can hold.
var limitTypes = []func(*ecs.ComponentRegistry) (ecs.ComponentId, error){
	ecs.RegisterComponent[[1]byte],
	ecs.RegisterComponent[[2]byte],
	ecs.RegisterComponent[[3]byte],
	ecs.RegisterComponent[[4]byte],
	ecs.RegisterComponent[[5]byte],
	ecs.RegisterComponent[[6]byte],
	ecs.RegisterComponent[[7]byte],
	ecs.RegisterComponent[[8]byte],
	ecs.RegisterComponent[[9]byte],
	ecs.RegisterComponent[[10]byte],
	ecs.RegisterComponent[[11]byte],
	ecs.RegisterComponent[[12]byte],
	ecs.RegisterComponent[[13]byte],
	ecs.RegisterComponent[[14]byte],
	ecs.RegisterComponent[[15]byte],
	ecs.RegisterComponent[[16]byte],
	ecs.RegisterComponent[[17]byte],
	ecs.RegisterComponent[[18]byte],
	ecs.RegisterComponent[[19]byte],
	ecs.RegisterComponent[[20]byte],
	ecs.RegisterComponent[[21]byte],
	ecs.RegisterComponent[[22]byte],
	ecs.RegisterComponent[[23]byte],
	ecs.RegisterComponent[[24]byte],
	ecs.RegisterComponent[[25]byte],
	ecs.RegisterComponent[[26]byte],
	ecs.RegisterComponent[[27]byte],
	ecs.RegisterComponent[[28]byte],
	ecs.RegisterComponent[[29]byte],
	ecs.RegisterComponent[[30]byte],
	ecs.RegisterComponent[[31]byte],
	ecs.RegisterComponent[[32]byte],
	ecs.RegisterComponent[[33]byte],
	ecs.RegisterComponent[[34]byte],
	ecs.RegisterComponent[[35]byte],
	ecs.RegisterComponent[[36]byte],
	ecs.RegisterComponent[[37]byte],
	ecs.RegisterComponent[[38]byte],
	ecs.RegisterComponent[[39]byte],
	ecs.RegisterComponent[[40]byte],
	ecs.RegisterComponent[[41]byte],
	ecs.RegisterComponent[[42]byte],
	ecs.RegisterComponent[[43]byte],
	ecs.RegisterComponent[[44]byte],
	ecs.RegisterComponent[[45]byte],
	ecs.RegisterComponent[[46]byte],
	ecs.RegisterComponent[[47]byte],
	ecs.RegisterComponent[[48]byte],
	ecs.RegisterComponent[[49]byte],
	ecs.RegisterComponent[[50]byte],
	ecs.RegisterComponent[[51]byte],
	ecs.RegisterComponent[[52]byte],
	ecs.RegisterComponent[[53]byte],
	ecs.RegisterComponent[[54]byte],
	ecs.RegisterComponent[[55]byte],
	ecs.RegisterComponent[[56]byte],
	ecs.RegisterComponent[[57]byte],
	ecs.RegisterComponent[[58]byte],
	ecs.RegisterComponent[[59]byte],
	ecs.RegisterComponent[[60]byte],
	ecs.RegisterComponent[[61]byte],
	ecs.RegisterComponent[[62]byte],
	ecs.RegisterComponent[[63]byte],
	ecs.RegisterComponent[[64]byte],
	ecs.RegisterComponent[[65]byte],
}
