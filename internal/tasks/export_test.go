package tasks

var NewAsynqDeferrerWith = newAsynqDeferrer
