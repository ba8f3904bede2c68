package server

import (
	"fmt"
	"net/http"
)

// handleTrackingJS serves the landing page tracking script
func (s *Server) handleTrackingJS(w http.ResponseWriter, r *http.Request) {
	// Determine server URL from request
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(GenerateTrackingScript(serverURL)))
}

// GenerateTrackingScript returns og.js bound to serverURL.
//
// The page marks its experiment with data-og-experiment on any element and
// each variant's markup with data-og-variant. Funnel sections carry
// data-og-step (hero, offer, benefits, process, form) and the lead form
// carries data-og-submit. Interaction events are sent with
// window.og.track(type, metadata).
func GenerateTrackingScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';
  var root=document.querySelector('[data-og-experiment]');
  if(!root)return;
  var exp=root.dataset.ogExperiment;
  var prop=root.dataset.ogProperty||'';

  // Session ID lives for the browser tab
  var sid=sessionStorage.getItem('og_sid');
  if(!sid){
    sid=crypto.randomUUID();
    sessionStorage.setItem('og_sid',sid);
  }

  // Visitor ID is sticky across sessions
  var vid=localStorage.getItem('og_vid');
  if(!vid){
    vid=crypto.randomUUID();
    localStorage.setItem('og_vid',vid);
  }

  var params=new URLSearchParams(location.search);
  var src=params.get('utm_source');
  if(!src&&document.referrer){
    try{src=new URL(document.referrer).hostname;}catch(e){}
  }

  var start=Date.now();
  var flags={viewed_hero:true};
  var variant=null;
  var queue=[];

  function post(path,body){
    var data=JSON.stringify(body);
    if(navigator.sendBeacon&&navigator.sendBeacon(S+path,data))return;
    fetch(S+path,{method:'POST',body:data,keepalive:true,headers:{'Content-Type':'application/json'}});
  }

  function visit(extra){
    if(!variant)return;
    var body={experiment:exp,variant:variant,session_id:sid,property_id:prop,source:src||''};
    for(var k in flags)body[k]=flags[k];
    if(extra)for(var e in extra)body[e]=extra[e];
    post('/v/visit',body);
  }

  function track(type,meta){
    if(!variant){queue.push([type,meta]);return;}
    post('/v/event',{experiment:exp,variant:variant,session_id:sid,type:type,metadata:meta||null});
  }

  function show(v){
    variant=v;
    document.documentElement.dataset.ogVariant=v;
    document.querySelectorAll('[data-og-variant]').forEach(function(el){
      el.hidden=el.dataset.ogVariant!==v;
    });
    visit();
    track('page_view');
    queue.splice(0).forEach(function(q){track(q[0],q[1]);});
  }

  var cached=sessionStorage.getItem('og_v_'+exp);
  if(cached){
    show(cached);
  }else{
    fetch(S+'/v/assign?e='+encodeURIComponent(exp)+'&vid='+encodeURIComponent(vid))
      .then(function(r){return r.ok?r.json():null;})
      .then(function(d){
        if(!d||!d.variant)return;
        sessionStorage.setItem('og_v_'+exp,d.variant);
        show(d.variant);
      });
  }

  // Funnel sections
  if('IntersectionObserver' in window){
    var io=new IntersectionObserver(function(entries){
      entries.forEach(function(en){
        if(!en.isIntersecting)return;
        var key='viewed_'+en.target.dataset.ogStep;
        io.unobserve(en.target);
        if(flags[key])return;
        flags[key]=true;
        visit();
      });
    },{threshold:0.5});
    document.querySelectorAll('[data-og-step]').forEach(function(el){io.observe(el);});
  }

  document.querySelectorAll('[data-og-submit]').forEach(function(form){
    form.addEventListener('submit',function(){
      flags.submitted_form=true;
      visit();
      track('form_submitted');
    });
  });

  // Time on page
  var sent=false;
  function leave(){
    if(sent)return;
    sent=true;
    visit({time_on_page:Math.round((Date.now()-start)/1000)});
    track('exit');
  }
  document.addEventListener('visibilitychange',function(){
    if(document.visibilityState==='hidden')leave();
    else sent=false;
  });
  window.addEventListener('pagehide',leave);

  window.og={track:track,variant:function(){return variant;}};
})();`, serverURL)
}
